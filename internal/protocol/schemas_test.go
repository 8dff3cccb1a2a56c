package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	createSchema := compile("create.schema.json")
	createAckSchema := compile("create_ack.schema.json")
	deleteSchema := compile("delete.schema.json")
	errorSchema := compile("error.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "client_name":"interface-7f3a",
	  "client_clock_usec":1724580000000000
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "session_id":"S1",
	  "server_clock_usec":1724580000123456,
	  "skew_usec":-123456,
	  "tree_scale":16384,
	  "max_packet_bytes":1400
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var create any
	_ = json.Unmarshal([]byte(`{
	  "type":"CREATE",
	  "protocol_version":"1.0",
	  "creator_token":7,
	  "seed_blob":"AAAAAAAAAAAAAAAAAAAAAAIAAAAAAAAAAAA="
	}`), &create)
	validate(createSchema, create)

	var createAck any
	_ = json.Unmarshal([]byte(`{
	  "type":"CREATE_ACK",
	  "creator_token":7,
	  "entity_id":"6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	}`), &createAck)
	validate(createAckSchema, createAck)

	var del any
	_ = json.Unmarshal([]byte(`{
	  "type":"DELETE",
	  "entity_id":"6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	}`), &del)
	validate(deleteSchema, del)

	var errMsg any
	_ = json.Unmarshal([]byte(`{
	  "type":"ERROR",
	  "code":"E_LOCKED",
	  "message":"entity is locked"
	}`), &errMsg)
	validate(errorSchema, errMsg)
}
