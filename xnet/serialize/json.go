package serialize

import jsoniter "github.com/json-iterator/go"

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type JSON struct{}

func (JSON) Name() string {
	return "json"
}

func (JSON) Marshal(v any) ([]byte, error) {
	b, err := jsonAPI.Marshal(v)
	if err != nil {
		return nil, marshalErr("json", err)
	}
	return b, nil
}

func (JSON) Unmarshal(data []byte, v any) error {
	if err := jsonAPI.Unmarshal(data, v); err != nil {
		return unmarshalErr("json", err)
	}
	return nil
}
