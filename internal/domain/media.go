package domain

import (
	"bytes"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MediaKind selects the storage tier a recording is routed to.
type MediaKind string

const (
	MediaKindVideo MediaKind = "video"
	MediaKindAudio MediaKind = "audio"
)

// Valid reports whether k is a known media kind.
func (k MediaKind) Valid() bool {
	return k == MediaKindVideo || k == MediaKindAudio
}

// MediaDescriptor is the result of uploading one contiguous recording segment.
// It is never mutated after the backend returns it, only referenced.
type MediaDescriptor struct {
	ID              string    `bson:"id" json:"id"`                   // Assigned by the storage backend
	PlaybackURL     string    `bson:"playbackUrl" json:"playbackUrl"` // Resolvable URL for later retrieval
	DurationSeconds float64   `bson:"durationSeconds" json:"durationSeconds"`
	Kind            MediaKind `bson:"kind" json:"kind"`
	SizeBytes       int64     `bson:"sizeBytes" json:"sizeBytes"`
}

// AssetStatus is the persisted state of a MediaAssetRecord.
type AssetStatus string

const (
	AssetStatusReady AssetStatus = "ready"
)

// OwnerTypeAnswer is the only owner type media assets are written with.
const OwnerTypeAnswer = "answer"

// PendingOwnerID is written as the owner of a media asset whose answer
// does not exist yet. The answer is created after the asset.
var PendingOwnerID = primitive.NilObjectID

// MediaAssetRecord wraps every segment of one answer's recording.
// Segments keep recording order; the record never exists with zero segments.
type MediaAssetRecord struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerType            string             `bson:"ownerType" json:"ownerType"`
	OwnerID              primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	PrimarySegment       MediaDescriptor    `bson:"primarySegment" json:"primarySegment"`
	Segments             []MediaDescriptor  `bson:"segments" json:"segments"`
	TotalDurationSeconds float64            `bson:"totalDurationSeconds" json:"totalDurationSeconds"`
	Status               AssetStatus        `bson:"status" json:"status"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
}

// TotalDuration sums segment durations. Unknown durations count as zero.
func TotalDuration(segments []MediaDescriptor) float64 {
	var total float64
	for _, s := range segments {
		if s.DurationSeconds > 0 {
			total += s.DurationSeconds
		}
	}
	return total
}

// Blob is a file-like payload handed to a storage backend.
// Open may be called more than once; every call returns a fresh reader
// positioned at the start.
type Blob struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadSeekCloser, error)
}

type bytesBlobReader struct {
	*bytes.Reader
}

func (bytesBlobReader) Close() error { return nil }

// BytesBlob wraps an in-memory payload.
func BytesBlob(filename, contentType string, data []byte) Blob {
	return Blob{
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadSeekCloser, error) {
			return bytesBlobReader{bytes.NewReader(data)}, nil
		},
	}
}

// MediaSegment is one recorded blob awaiting upload.
type MediaSegment struct {
	Blob            Blob
	DurationSeconds float64
}

// Recording is the media part of an answer. Either Segments (to be uploaded)
// or Uploaded (a segment list produced by an earlier upload) is set, not both.
type Recording struct {
	Kind     MediaKind
	Segments []MediaSegment
	Uploaded []MediaDescriptor
}

// Present reports whether the recording carries anything to persist.
func (r *Recording) Present() bool {
	return r != nil && (len(r.Segments) > 0 || len(r.Uploaded) > 0)
}
