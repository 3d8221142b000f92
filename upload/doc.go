// Package upload 将图片附件上传到 Bing 知识库 blob 接口，
// 返回的 blob id 由 chathub 拼接为 imageUrl 随提问一起发送。
package upload
