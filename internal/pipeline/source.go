package pipeline

import (
	"errors"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"
)

const pdfMIMEType = "application/pdf"

func init() {
	api.DisableConfigDir()
}

func relaxedConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// readSource loads the source document and checks that it looks like a PDF.
// Structural problems found by the validator are only logged; the renderer
// is the final judge of whether the document can be read.
func readSource(logger *logrus.Entry, path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, NewSourceUnreadableError(path, err)
	}
	if info.IsDir() {
		return nil, NewSourceUnreadableError(path, errors.New("is a directory"))
	}
	if info.Size() == 0 {
		return nil, NewSourceUnreadableError(path, errors.New("file is empty"))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewSourceUnreadableError(path, err)
	}
	if mtype := mimetype.Detect(data); !mtype.Is(pdfMIMEType) {
		return nil, NewSourceUnreadableError(path, fmt.Errorf("unsupported file type %s", mtype.String()))
	}

	if err := api.ValidateFile(path, relaxedConfig()); err != nil {
		logger.WithError(err).Warn("Source document does not validate, continuing anyway")
	}
	return data, nil
}
