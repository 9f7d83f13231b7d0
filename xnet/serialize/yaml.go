package serialize

import "gopkg.in/yaml.v2"

type YAML struct{}

func (YAML) Name() string {
	return "yaml"
}

func (YAML) Marshal(v any) ([]byte, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return nil, marshalErr("yaml", err)
	}
	return b, nil
}

func (YAML) Unmarshal(data []byte, v any) error {
	if err := yaml.Unmarshal(data, v); err != nil {
		return unmarshalErr("yaml", err)
	}
	return nil
}
