package utils

const (
	// MimeTypeJPEG is regular jpgs.
	MimeTypeJPEG = "image/jpeg"

	// MimeTypePNG is regular pngs.
	MimeTypePNG = "image/png"

	// MimeTypeQOI is for .qoi "Quite OK Image" for lossless, fast encoding/decoding.
	MimeTypeQOI = "image/qoi"

	// MimeTypePCD is for .pcd pointcloud files.
	MimeTypePCD = "pointcloud/pcd"

	// MimeTypeJSON is for state and object descriptions served to the settings panel.
	MimeTypeJSON = "application/json"
)
