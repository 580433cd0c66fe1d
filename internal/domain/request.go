package domain

import "io"

// Upload is an inbound file handed to the service.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadResponse is the response for POST /uploadfile/.
type UploadResponse struct {
	Message string `json:"message"`
}

// OutputFileResponse is the response for GET /outputfile/.
type OutputFileResponse struct {
	File string `json:"file"`
}

// ErrorResponse carries a human-readable failure detail.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
