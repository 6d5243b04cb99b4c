package watch

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuilder/internal/content"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
	"git.home.luguber.info/inful/sitebuilder/internal/queue"
	"git.home.luguber.info/inful/sitebuilder/internal/wizard"
	"git.home.luguber.info/inful/sitebuilder/internal/workspace"
)

// JobFile is the document dropped into the inbox.
type JobFile struct {
	// ID becomes the run ID. The file name stem is used when empty.
	ID             string           `json:"id,omitempty"`
	Wizard         json.RawMessage  `json:"wizard"`
	Records        []content.Record `json:"records,omitempty"`
	RequireContent bool             `json:"requireContent,omitempty"`
}

// ParseJobFile decodes a job file named name into a queue job.
func ParseJobFile(name string, data []byte) (*queue.Job, error) {
	var jf JobFile
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&jf); err != nil {
		return nil, ferrors.ValidationError("malformed job file").WithCause(err).WithContext("file", name).Build()
	}
	if len(jf.Wizard) == 0 {
		return nil, ferrors.ValidationError("job file has no wizard document").WithContext("file", name).Build()
	}
	w, err := wizard.DecodeBytes(jf.Wizard, wizard.FormatJSON)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(jf.ID)
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		if workspace.ValidateRunID(id) != nil {
			id = uuid.NewString()
		}
	}
	if err := workspace.ValidateRunID(id); err != nil {
		return nil, ferrors.ValidationError("job file has an unusable id").WithCause(err).WithContext("file", name).Build()
	}

	return &queue.Job{
		ID:     id,
		Source: name,
		Request: pipeline.Request{
			Wizard:         w,
			Records:        jf.Records,
			RequireContent: jf.RequireContent,
		},
	}, nil
}
