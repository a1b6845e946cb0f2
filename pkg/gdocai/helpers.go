package gdocai

import (
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// ToJSON renders a protocol buffer message as indented JSON.
func ToJSON(m proto.Message) (string, error) {
	jsonData, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}
