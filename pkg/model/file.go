package model

import "mime"

// ClassifyExtension derives a FileType from a file's extension, per the
// spec's MIME-by-extension mapping: image/* -> Image, video/* -> Video,
// application/pdf -> Pdf, text/* -> Text, the Android package archive MIME
// -> Apk, everything else -> Other.
func ClassifyExtension(ext string) FileType {
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return classifyByExtensionFallback(ext)
	}
	switch {
	case hasPrefix(mimeType, "image/"):
		return FileTypeImage
	case hasPrefix(mimeType, "video/"):
		return FileTypeVideo
	case hasPrefix(mimeType, "application/pdf"):
		return FileTypePdf
	case hasPrefix(mimeType, "text/"):
		return FileTypeText
	case hasPrefix(mimeType, "application/vnd.android.package-archive"):
		return FileTypeApk
	default:
		return FileTypeOther
	}
}

// classifyByExtensionFallback covers extensions the local mime.types
// database doesn't know about (common on minimal container images).
func classifyByExtensionFallback(ext string) FileType {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp":
		return FileTypeImage
	case ".mp4", ".mov", ".avi", ".mkv", ".webm":
		return FileTypeVideo
	case ".pdf":
		return FileTypePdf
	case ".txt", ".md", ".rtf", ".csv":
		return FileTypeText
	case ".apk":
		return FileTypeApk
	default:
		return FileTypeOther
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
