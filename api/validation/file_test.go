package validation

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
)

// formFile round-trips payload bytes through a real multipart form so the
// detector sees the same reader the handlers do.
func formFile(t *testing.T, payload []byte) multipart.File {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("files", "upload.bin")
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("Failed to write payload: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("Failed to parse form: %v", err)
	}

	file, _, err := req.FormFile("files")
	if err != nil {
		t.Fatalf("Failed to get form file: %v", err)
	}
	return file
}

func webpPayload() []byte {
	payload := make([]byte, 32)
	copy(payload[0:4], "RIFF")
	copy(payload[8:12], "WEBP")
	return payload
}

func TestDetectFileType(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
		want    FileType
		wantErr bool
	}{
		{"png", append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 16)...), FileTypePNG, false},
		{"jpeg", append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 16)...), FileTypeJPEG, false},
		{"gif", append([]byte("GIF89a"), make([]byte, 16)...), FileTypeGIF, false},
		{"webp", webpPayload(), FileTypeWebP, false},
		{"riff but not webp", append([]byte("RIFF\x00\x00\x00\x00WAVE"), make([]byte, 16)...), "", true},
		{"plain text", []byte("hello, definitely not an image"), "", true},
		{"empty", nil, "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			file := formFile(t, tc.payload)
			defer file.Close()

			got, err := DetectFileType(file)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestDetectFileType_RewindsReader(t *testing.T) {
	file := formFile(t, webpPayload())
	defer file.Close()

	if _, err := DetectFileType(file); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// The sniff must leave the reader at the start for the upcoming save.
	data, err := io.ReadAll(file)
	if err != nil {
		t.Fatalf("Failed to re-read file: %v", err)
	}
	if len(data) != len(webpPayload()) {
		t.Errorf("Reader not rewound: read %d of %d bytes", len(data), len(webpPayload()))
	}
}

func TestIsAllowedImageType(t *testing.T) {
	for _, ft := range []FileType{FileTypePNG, FileTypeJPEG, FileTypeGIF, FileTypeWebP} {
		if !IsAllowedImageType(ft) {
			t.Errorf("%s should be allowed", ft)
		}
	}
	if IsAllowedImageType(FileType("pdf")) {
		t.Error("pdf should not be allowed")
	}
	if IsAllowedImageType("") {
		t.Error("Empty type should not be allowed")
	}
}
