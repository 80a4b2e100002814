package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// FormField is one text field of a multipart body.
type FormField struct {
	Name  string
	Value string
}

// FormFile is one file part of a multipart body.
type FormFile struct {
	Field       string
	Filename    string
	ContentType string
	Content     io.Reader
}

// Multipart is a form-data body. The client sets the boundary content type
// itself; any Content-Type passed by the caller is dropped.
type Multipart struct {
	Fields []FormField
	Files  []FormFile
}

type bodyKind int

const (
	bodyJSON bodyKind = iota
	bodyMultipart
	bodyRaw
)

type encodedBody struct {
	reader      io.Reader
	kind        bodyKind
	contentType string
}

func encodeBody(body any) (encodedBody, error) {
	switch b := body.(type) {
	case nil:
		return encodedBody{kind: bodyJSON}, nil
	case *Multipart:
		return encodeMultipart(b)
	case json.RawMessage:
		return encodedBody{reader: bytes.NewReader(b), kind: bodyJSON}, nil
	case string:
		return encodedBody{reader: strings.NewReader(b), kind: bodyJSON}, nil
	case []byte:
		return encodedBody{reader: bytes.NewReader(b), kind: bodyRaw}, nil
	case io.Reader:
		return encodedBody{reader: b, kind: bodyRaw}, nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return encodedBody{}, err
		}
		return encodedBody{reader: bytes.NewReader(raw), kind: bodyJSON}, nil
	}
}

func encodeMultipart(m *Multipart) (encodedBody, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if m != nil {
		for _, f := range m.Fields {
			if err := w.WriteField(f.Name, f.Value); err != nil {
				return encodedBody{}, err
			}
		}
		for _, f := range m.Files {
			if f.Content == nil {
				return encodedBody{}, fmt.Errorf("file part %q has no content", f.Field)
			}
			part, err := createFilePart(w, f)
			if err != nil {
				return encodedBody{}, err
			}
			if _, err := io.Copy(part, f.Content); err != nil {
				return encodedBody{}, fmt.Errorf("copy %s: %w", f.Filename, err)
			}
		}
	}
	if err := w.Close(); err != nil {
		return encodedBody{}, err
	}
	return encodedBody{reader: &buf, kind: bodyMultipart, contentType: w.FormDataContentType()}, nil
}

func createFilePart(w *multipart.Writer, f FormFile) (io.Writer, error) {
	if f.ContentType == "" {
		return w.CreateFormFile(f.Field, f.Filename)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Filename))
	h.Set("Content-Type", f.ContentType)
	return w.CreatePart(h)
}
