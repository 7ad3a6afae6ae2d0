package domain

// AttachmentDescriptor is the result of uploading one non-media file.
// Filename is the source filename verbatim, independent of ID or storage key.
type AttachmentDescriptor struct {
	ID        string `bson:"id" json:"id"`
	URL       string `bson:"url" json:"url"`
	Filename  string `bson:"filename" json:"filename"`
	SizeBytes int64  `bson:"sizeBytes" json:"sizeBytes"`
	MimeType  string `bson:"mimeType" json:"mimeType"`
}

// Attachment is either a file still to upload or a descriptor from an
// earlier upload. Which one is decided when the attachment is built.
type Attachment struct {
	pending  *Blob
	uploaded *AttachmentDescriptor
}

// PendingAttachment wraps a file that has not been uploaded yet.
func PendingAttachment(file Blob) Attachment {
	return Attachment{pending: &file}
}

// UploadedAttachment wraps a descriptor produced by a previous upload.
// It passes through the attachment stage without a network call.
func UploadedAttachment(d AttachmentDescriptor) Attachment {
	return Attachment{uploaded: &d}
}

// Pending returns the file to upload, if any.
func (a Attachment) Pending() (Blob, bool) {
	if a.pending == nil {
		return Blob{}, false
	}
	return *a.pending, true
}

// Uploaded returns the existing descriptor, if any.
func (a Attachment) Uploaded() (AttachmentDescriptor, bool) {
	if a.uploaded == nil {
		return AttachmentDescriptor{}, false
	}
	return *a.uploaded, true
}

// IsUploaded reports whether the attachment already lives in storage.
func (a Attachment) IsUploaded() bool {
	return a.uploaded != nil
}

// Filename is the display name of either variant.
func (a Attachment) Filename() string {
	switch {
	case a.uploaded != nil:
		return a.uploaded.Filename
	case a.pending != nil:
		return a.pending.Filename
	}
	return ""
}
