package core

import (
	"path/filepath"
	"strings"
)

// Type groups are a coarse classification stored on unique content.
// The tag is assigned from the file extension at first discovery and may be
// overwritten later by the external metadata collaborator.
const (
	GroupImage    = "image"
	GroupVideo    = "video"
	GroupAudio    = "audio"
	GroupDocument = "document"
	GroupOther    = "other"
)

var extGroups = map[string]string{
	".jpg":  GroupImage,
	".jpeg": GroupImage,
	".png":  GroupImage,
	".gif":  GroupImage,
	".bmp":  GroupImage,
	".tiff": GroupImage,
	".tif":  GroupImage,
	".webp": GroupImage,
	".heic": GroupImage,
	".raw":  GroupImage,
	".cr2":  GroupImage,
	".nef":  GroupImage,

	".mp4":  GroupVideo,
	".mov":  GroupVideo,
	".avi":  GroupVideo,
	".mkv":  GroupVideo,
	".wmv":  GroupVideo,
	".m4v":  GroupVideo,
	".mpg":  GroupVideo,
	".mpeg": GroupVideo,
	".webm": GroupVideo,
	".3gp":  GroupVideo,

	".mp3":  GroupAudio,
	".wav":  GroupAudio,
	".flac": GroupAudio,
	".aac":  GroupAudio,
	".ogg":  GroupAudio,
	".wma":  GroupAudio,
	".m4a":  GroupAudio,

	".pdf":  GroupDocument,
	".doc":  GroupDocument,
	".docx": GroupDocument,
	".xls":  GroupDocument,
	".xlsx": GroupDocument,
	".ppt":  GroupDocument,
	".pptx": GroupDocument,
	".txt":  GroupDocument,
	".odt":  GroupDocument,
	".rtf":  GroupDocument,
}

// ClassifyPath returns the type group for a path based on its extension.
func ClassifyPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if group, ok := extGroups[ext]; ok {
		return group
	}
	return GroupOther
}

// ValidTypeGroup reports whether tag is one of the known type groups.
func ValidTypeGroup(tag string) bool {
	switch tag {
	case GroupImage, GroupVideo, GroupAudio, GroupDocument, GroupOther:
		return true
	}
	return false
}
