package models

// Asset kinds tracked per side of a report.
const (
	AssetKindOriginal = "original"
	AssetKindCropped  = "cropped"
)

// ReportAsset is the durable local record of one binary file (image)
// belonging to one side/kind of one report. Reconciliation identity is
// (report client id, side, kind) plus the content hash; the server assigns
// an id once the binary is uploaded.
type ReportAsset struct {
	ClientID       string  `gorm:"primaryKey" json:"client_id"`
	ReportClientID string  `gorm:"index;not null" json:"report_client_id"`
	ServerID       *string `gorm:"index" json:"server_id,omitempty"`

	Side      Side   `gorm:"not null" json:"side"`
	Kind      string `gorm:"not null" json:"kind"`
	LocalPath string `gorm:"not null" json:"local_path"`

	SHA256     string `gorm:"index" json:"sha256,omitempty"`
	Width      *int   `gorm:"" json:"width,omitempty"`
	Height     *int   `gorm:"" json:"height,omitempty"`
	CapturedAt *int64 `gorm:"" json:"captured_at,omitempty"` // EXIF timestamp, epoch seconds

	CreatedAt int64 `gorm:"not null" json:"created_at"` // epoch milliseconds
}

// TableName explicitly sets the table name for GORM.
func (ReportAsset) TableName() string {
	return "report_assets"
}
