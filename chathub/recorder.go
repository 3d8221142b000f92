package chathub

import "time"

// MetricsRecorder receives session measurements. *metrics.Collector
// implements it.
type MetricsRecorder interface {
	SessionStarted(mode string)
	SessionFinished(mode, outcome string, duration time.Duration)
	RecordFrame(frameType int)
	RecordControlFrame(frameType int, source string)
	RecordEmptyReceive(mode string)
	RecordSalvage(mode string)
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted(string) {}
func (nopRecorder) SessionFinished(string, string, time.Duration) {}
func (nopRecorder) RecordFrame(int) {}
func (nopRecorder) RecordControlFrame(int, string) {}
func (nopRecorder) RecordEmptyReceive(string) {}
func (nopRecorder) RecordSalvage(string) {}

// MultiRecorder fans measurements out to every non-nil recorder.
func MultiRecorder(recorders ...MetricsRecorder) MetricsRecorder {
	out := make(multiRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	switch len(out) {
	case 0:
		return nopRecorder{}
	case 1:
		return out[0]
	}
	return out
}

type multiRecorder []MetricsRecorder

func (m multiRecorder) SessionStarted(mode string) {
	for _, r := range m {
		r.SessionStarted(mode)
	}
}

func (m multiRecorder) SessionFinished(mode, outcome string, d time.Duration) {
	for _, r := range m {
		r.SessionFinished(mode, outcome, d)
	}
}

func (m multiRecorder) RecordFrame(frameType int) {
	for _, r := range m {
		r.RecordFrame(frameType)
	}
}

func (m multiRecorder) RecordControlFrame(frameType int, source string) {
	for _, r := range m {
		r.RecordControlFrame(frameType, source)
	}
}

func (m multiRecorder) RecordEmptyReceive(mode string) {
	for _, r := range m {
		r.RecordEmptyReceive(mode)
	}
}

func (m multiRecorder) RecordSalvage(mode string) {
	for _, r := range m {
		r.RecordSalvage(mode)
	}
}
