package storage

import "errors"

// ErrNoStoredFile is returned when a sendDocument result names no file.
var ErrNoStoredFile = errors.New("telegram response carried no stored file")

// Kind names the shape of a sendDocument result.
type Kind string

const (
	KindDocument  Kind = "document"
	KindPhoto     Kind = "photo"
	KindVideo     Kind = "video"
	KindAnimation Kind = "animation"
	KindAudio     Kind = "audio"
)

// StoredFile is the file a sendDocument result resolved to.
type StoredFile struct {
	Kind         Kind
	FileID       string
	FileUniqueID string
	Size         int64
}

type fileRef struct {
	FileID       string `json:"file_id"`
	FileUniqueID string `json:"file_unique_id"`
	FileSize     int64  `json:"file_size,omitempty"`
}

// message is the subset of a Bot API Message that can carry a stored file.
// Telegram fills exactly one of these depending on how it classified the upload.
type message struct {
	Document  *fileRef  `json:"document,omitempty"`
	Photo     []fileRef `json:"photo,omitempty"`
	Video     *fileRef  `json:"video,omitempty"`
	Animation *fileRef  `json:"animation,omitempty"`
	Audio     *fileRef  `json:"audio,omitempty"`
}

// Stored picks the canonical file out of the message.
//
// The order is fixed: document first, then the last photo size (Telegram
// sorts the ladder ascending, so the last entry is the largest), then the
// media kinds Telegram may substitute for a document.
func (m message) Stored() (StoredFile, error) {
	switch {
	case m.Document != nil:
		return m.Document.as(KindDocument), nil
	case len(m.Photo) > 0:
		return m.Photo[len(m.Photo)-1].as(KindPhoto), nil
	case m.Video != nil:
		return m.Video.as(KindVideo), nil
	case m.Animation != nil:
		return m.Animation.as(KindAnimation), nil
	case m.Audio != nil:
		return m.Audio.as(KindAudio), nil
	default:
		return StoredFile{}, ErrNoStoredFile
	}
}

func (f fileRef) as(k Kind) StoredFile {
	return StoredFile{Kind: k, FileID: f.FileID, FileUniqueID: f.FileUniqueID, Size: f.FileSize}
}

// file is the Bot API File object returned by getFile.
type file struct {
	FilePath string `json:"file_path"`
}
