package scorecard

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

const cardA = `{"course":{"name":"Alpine","holes":[2,3,2,4,3,2,3,3,2,3,2,4,3,2,3,3,2,3]},"players":{"Ann":[2,3,2,4,3,2,3,3,2,3,2,4,3,2,3,3,2,3]}}`
const cardB = `{"course":{"name":"Bayside","holes":[3,3,3,3,3,3,3,3,3,3,3,3,3,3,3,3,3,3]},"players":{"Bo":[1,2,3,4,5,6,7,8,9,1,2,3,4,5,6,7,8,9],"Cy":[2,2,2,2,2,2,2,2,2,2,2,2,2,2,2,2,2,2]}}`

func TestReassemblePositional(t *testing.T) {
	reply := `{"first": ` + cardA + `, "second": ` + cardB + `}`

	out, err := Reassemble(reply, []string{"a", "b"})
	if err != nil {
		t.Fatalf("Reassemble() error: %v", err)
	}
	if !strings.HasPrefix(string(out), `{"a":`) {
		t.Errorf("output does not start with key a: %s", out)
	}
	if got := gjson.GetBytes(out, "a.course.name").String(); got != "Alpine" {
		t.Errorf("a.course.name = %q, want Alpine", got)
	}
	if got := gjson.GetBytes(out, "b.course.name").String(); got != "Bayside" {
		t.Errorf("b.course.name = %q, want Bayside", got)
	}
	if gjson.GetBytes(out, "first").Exists() {
		t.Error("model key leaked into output")
	}
}

func TestReassembleNumberedKeysOutOfOrder(t *testing.T) {
	reply := `{"image2": ` + cardB + `, "image1": ` + cardA + `}`

	out, err := Reassemble(reply, []string{"front9", "back9"})
	if err != nil {
		t.Fatalf("Reassemble() error: %v", err)
	}
	if got := gjson.GetBytes(out, "front9.course.name").String(); got != "Alpine" {
		t.Errorf("front9 = %q, want Alpine (image1)", got)
	}
	if got := gjson.GetBytes(out, "back9.course.name").String(); got != "Bayside" {
		t.Errorf("back9 = %q, want Bayside (image2)", got)
	}
	if !strings.HasPrefix(string(out), `{"front9":`) {
		t.Errorf("keys not in input order: %s", out)
	}
}

func TestReassembleStripsFencesAndProse(t *testing.T) {
	replies := []string{
		"```json\n{\"image1\": " + cardA + "}\n```",
		"```\n{\"image1\": " + cardA + "}\n```",
		"Here is the data you asked for:\n{\"image1\": " + cardA + "}\nLet me know if you need more.",
	}
	for _, reply := range replies {
		out, err := Reassemble(reply, []string{"card"})
		if err != nil {
			t.Errorf("Reassemble(%q) error: %v", reply, err)
			continue
		}
		if got := gjson.GetBytes(out, "card.course.name").String(); got != "Alpine" {
			t.Errorf("card.course.name = %q from %q", got, reply)
		}
	}
}

func TestReassembleTooManyEntries(t *testing.T) {
	reply := `{"image1": ` + cardA + `, "image2": ` + cardB + `}`
	_, err := Reassemble(reply, []string{"only"})
	if !errors.Is(err, ErrResponseParse) {
		t.Errorf("err = %v, want ErrResponseParse", err)
	}
}

func TestReassembleFewerEntries(t *testing.T) {
	reply := `{"image1": ` + cardA + `}`
	out, err := Reassemble(reply, []string{"a", "b"})
	if err != nil {
		t.Fatalf("Reassemble() error: %v", err)
	}
	if !gjson.GetBytes(out, "a").Exists() || gjson.GetBytes(out, "b").Exists() {
		t.Errorf("output = %s, want only key a", out)
	}
}

func TestReassembleRejectsNonObjects(t *testing.T) {
	for _, reply := range []string{"", "I could not read the card.", "[1, 2, 3]", `"text"`, "{broken"} {
		if _, err := Reassemble(reply, []string{"a"}); !errors.Is(err, ErrResponseParse) {
			t.Errorf("Reassemble(%q) err = %v, want ErrResponseParse", reply, err)
		}
	}
}

func TestReassembleEscapesLabels(t *testing.T) {
	out, err := Reassemble(`{"x": {}}`, []string{`round "1".final`})
	if err != nil {
		t.Fatalf("Reassemble() error: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if _, ok := decoded[`round "1".final`]; !ok {
		t.Errorf("label key missing: %s", out)
	}
}

func TestReassembleRejectsCollidingLabels(t *testing.T) {
	reply := `{"image1": {"x": 1}, "image2": {"x": 2}}`
	_, err := Reassemble(reply, []string{"a\xff", "a\xfe"})
	if !errors.Is(err, ErrUsage) {
		t.Errorf("err = %v, want ErrUsage for labels that encode to the same key", err)
	}
}

func TestSingleReturnsObject(t *testing.T) {
	out, err := Single("```json\n" + cardA + "\n```")
	if err != nil {
		t.Fatalf("Single() error: %v", err)
	}
	if string(out) != cardA {
		t.Errorf("Single() = %s, want %s", out, cardA)
	}
}

func TestRenderCompactAndIndentedAgree(t *testing.T) {
	data := []byte(`{"a":` + cardA + `,"b":` + cardB + `}`)

	compact := Render(data, false)
	indented := Render(data, true)

	if strings.Contains(string(compact), "\n") {
		t.Errorf("compact output has newlines: %s", compact)
	}
	if !strings.Contains(string(indented), "\n  ") {
		t.Errorf("indented output has no indentation: %s", indented)
	}
	if !strings.Contains(string(indented), "\"holes\": [\n        2,\n        3,") {
		t.Errorf("array elements not on their own lines: %s", indented)
	}
	if strings.HasSuffix(string(indented), "\n") {
		t.Error("indented output ends with a newline")
	}

	var c, i interface{}
	if err := json.Unmarshal(compact, &c); err != nil {
		t.Fatalf("compact: %v", err)
	}
	if err := json.Unmarshal(indented, &i); err != nil {
		t.Fatalf("indented: %v", err)
	}
	if !reflect.DeepEqual(c, i) {
		t.Error("compact and indented outputs decode differently")
	}
}
