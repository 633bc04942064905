// internal/machine/fill.go
package machine

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/voidwalk/webgen/api/schemas"
	"github.com/voidwalk/webgen/internal/browser"
)

// fill populates every request field that has a locator in the profile,
// images before text so framework-side preprocessing kicks off early. The
// returned cleanup removes any temp files materialized for uploads and must
// run only after the attempt finishes: Chrome reads upload paths lazily.
func (m *Machine) fill(ctx context.Context, pg browser.Page, prof schemas.SelectorProfile, req *schemas.GenerationRequest, log *zap.Logger) (func(), *schemas.AttemptError) {
	var tempFiles []string
	cleanup := func() {
		for _, f := range tempFiles {
			os.Remove(f)
		}
	}

	required := make(map[schemas.FieldRole]bool)
	for _, role := range schemas.RequiredFields(req.Task) {
		required[role] = true
	}

	for _, role := range schemas.FillOrder {
		if !req.HasField(role) {
			continue
		}
		locator, ok := prof.Inputs[role]
		if !ok || locator == "" {
			if required[role] {
				return cleanup, schemas.NewAttemptError(schemas.ErrKindUnsupportedField, nil,
					"provider %s has no locator for required field %q", prof.Provider, role)
			}
			log.Debug("Skipping optional field without locator.", zap.String("field", string(role)))
			continue
		}

		var err error
		switch role {
		case schemas.RolePrompt:
			err = pg.SetText(ctx, locator, req.Prompt)
		case schemas.RoleNegativePrompt:
			err = pg.SetText(ctx, locator, req.NegativePrompt)
		case schemas.RoleSourceImage:
			var path string
			path, err = m.materializeImage(req.SourceImage, req.SourceImagePath, &tempFiles)
			if err == nil {
				err = pg.SetFile(ctx, locator, path)
			}
		case schemas.RoleMaskImage:
			var path string
			path, err = m.materializeImage(req.MaskImage, req.MaskImagePath, &tempFiles)
			if err == nil {
				err = pg.SetFile(ctx, locator, path)
			}
		default:
			err = pg.SetNumber(ctx, locator, req.NumericValue(role))
		}
		if err != nil {
			return cleanup, schemas.NewAttemptError(m.classify(ctx, schemas.ErrKindUnsupportedField), err,
				"failed to set field %q on provider %s", role, prof.Provider)
		}
		log.Debug("Field set.", zap.String("field", string(role)))
	}
	return cleanup, nil
}

// materializeImage resolves an image input to a filesystem path. In-memory
// bytes are written to a temp file because the upload API takes paths only.
func (m *Machine) materializeImage(data []byte, path string, tempFiles *[]string) (string, error) {
	if len(data) == 0 {
		return path, nil
	}
	f, err := os.CreateTemp("", "webgen-upload-*.png")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	*tempFiles = append(*tempFiles, f.Name())
	return f.Name(), nil
}
