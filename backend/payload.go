package backend

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-json"
	"github.com/mbolis/pozo-survey/model"
)

const (
	PartData  = "data"
	PartFotos = "fotos"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// EncodeSurvey builds the multipart body of an ingestion request: the survey
// as JSON under "data", then one "fotos" part per attachment.
func EncodeSurvey(e model.Encuesta, fotos []model.Attachment) (body *bytes.Buffer, contentType string, err error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrEncode, err)
	}

	body = &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	if err = mw.WriteField(PartData, string(data)); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrEncode, err)
	}

	for _, f := range fotos {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, PartFotos, quoteEscaper.Replace(f.Filename)))
		h.Set("Content-Type", mimetype.Detect(f.Content).String())

		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("%w: foto %q: %v", ErrEncode, f.Filename, err)
		}
		if _, err = part.Write(f.Content); err != nil {
			return nil, "", fmt.Errorf("%w: foto %q: %v", ErrEncode, f.Filename, err)
		}
	}

	if err = mw.Close(); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return body, mw.FormDataContentType(), nil
}
