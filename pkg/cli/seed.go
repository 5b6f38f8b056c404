package cli

import (
	"os"

	"github.com/m-mizutani/chorus/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout accepted by --seed
//
//	records:
//	  - scope: run:retro
//	    actor_id: alice
//	    role: user
//	    content: ship it
//	    created_at: "2024-01-01T10:00:00Z"
type seedFile struct {
	Records []seedRecord `yaml:"records"`
}

type seedRecord struct {
	ID        string         `yaml:"id"`
	Scope     string         `yaml:"scope"`
	ActorID   string         `yaml:"actor_id"`
	Role      string         `yaml:"role"`
	Content   string         `yaml:"content"`
	CreatedAt string         `yaml:"created_at"`
	Metadata  map[string]any `yaml:"metadata"`
}

func loadSeed(path string) ([]*model.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read seed file", goerr.V("path", path))
	}
	return parseSeed(data)
}

func parseSeed(data []byte) ([]*model.Record, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse seed file")
	}

	records := make([]*model.Record, 0, len(file.Records))
	for i, r := range file.Records {
		scope, err := model.ParseScope(r.Scope)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid seed record", goerr.V("index", i))
		}
		if r.Content == "" {
			return nil, goerr.Wrap(model.ErrEmptyContent, "invalid seed record", goerr.V("index", i))
		}

		records = append(records, &model.Record{
			ID:        model.RecordID(r.ID),
			Content:   r.Content,
			ActorID:   r.ActorID,
			Role:      model.Role(r.Role),
			Scope:     scope,
			CreatedAt: r.CreatedAt,
			Metadata:  r.Metadata,
		})
	}
	return records, nil
}
