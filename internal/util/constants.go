package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 笔记附件允许的 MIME 类型
const (
	MimeVideo = "video/"
	MimeImage = "image/"
	MimePDF   = "application/pdf"
	MimeText  = "text/plain"
)

var AllowedAttachmentTypes = []string{MimePDF, MimeText, MimeImage, MimeVideo}

// MaxAttachmentSize 笔记附件上限 50MB
const MaxAttachmentSize = 50 << 20
