// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ingest

import (
	"errors"
	"strings"

	"github.com/ManuGH/courseflow/internal/courseapi"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Metadata describes the media being ingested.
type Metadata struct {
	Title       string       `validate:"required,max=255"`
	Description string       `validate:"max=5000"`
	CourseID    courseapi.ID `validate:"required"`
	ModuleID    courseapi.ID
}

func validateInput(src Source, meta Metadata) error {
	fields := map[string]string{}
	collect := func(err error) {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			for _, fe := range ve {
				fields[fe.StructNamespace()] = fe.Tag()
			}
		} else if err != nil {
			fields["input"] = err.Error()
		}
	}
	meta.Title = strings.TrimSpace(meta.Title)
	collect(validate.Struct(meta))
	collect(validate.Struct(src))
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
