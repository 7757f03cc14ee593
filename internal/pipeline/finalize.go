package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/sirupsen/logrus"

	"pdf-translator/internal/constants"
	"pdf-translator/internal/layout"
	"pdf-translator/internal/reconstruct"
	"pdf-translator/internal/stage"
)

// OutputPath returns where the result for inputPath is written.
func OutputPath(inputPath, outputDir string) string {
	return filepath.Join(outputDir, constants.OutputPrefix+filepath.Base(inputPath))
}

// writeTranslated composes the translated document into a temp file next to
// outputPath and moves it into place only once it is complete and plausible.
func (p *Pipeline) writeTranslated(ctx context.Context, logger *logrus.Entry, data []byte, src reconstruct.Source, content layout.Document, outputPath string) (reconstruct.Report, []stage.Outcome, error) {
	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".translated-*.pdf")
	if err != nil {
		return reconstruct.Report{}, nil, NewReconstructionFailureError(err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmp)
	report, err := reconstruct.Reconstruct(ctx, data, src, content, reconstruct.Options{
		ColorDPI: p.cfg.ColorDPI,
		FontPath: p.cfg.FontPath,
	}, w)
	if err == nil {
		err = w.Flush()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return report, nil, ctxErr
		}
		return report, nil, NewReconstructionFailureError(err)
	}

	var outcomes []stage.Outcome
	if p.cfg.SkipOptimize {
		outcomes = append(outcomes, stage.Ok(stage.Finalize, -1))
	} else if err := api.OptimizeFile(tmpPath, tmpPath, relaxedConfig()); err != nil {
		logger.WithError(err).Warn("Could not normalize output document, keeping it unoptimized")
		outcomes = append(outcomes, stage.Degrade(stage.Finalize, -1, "output not normalized: %v", err))
	} else {
		outcomes = append(outcomes, stage.Ok(stage.Finalize, -1))
	}

	info, err := os.Stat(tmpPath)
	if err != nil {
		return report, outcomes, NewOutputInvalidError("output document is missing", err)
	}
	if info.Size() <= p.cfg.MinOutputSize {
		return report, outcomes, NewOutputInvalidError(fmt.Sprintf("output document is only %d bytes", info.Size()), nil)
	}

	if err := os.Rename(tmpPath, outputPath); err != nil {
		return report, outcomes, NewOutputInvalidError("cannot move output document into place", err)
	}
	committed = true
	return report, outcomes, nil
}

// copySource writes the unmodified source bytes to outputPath through a temp
// file so a failed copy never leaves a partial file behind.
func copySource(data []byte, outputPath string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".copy-*.pdf")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}

	info, err := os.Stat(tmpPath)
	if err != nil {
		return err
	}
	if info.Size() != int64(len(data)) {
		return errors.New("copied document is incomplete")
	}
	return os.Rename(tmpPath, outputPath)
}
