package media

type ArtifactType string

const (
	ArtifactTypeDocument  ArtifactType = "document"
	ArtifactTypeThumbnail ArtifactType = "thumbnail"
	ArtifactTypeUnknown   ArtifactType = "unknown"
)
