package bacnet

import (
	"reflect"
	"testing"
)

func TestExtractStrategies(t *testing.T) {
	text := "object-identifier: (analog-input, 7)\n" +
		"Status Flags: {false,true,false,false}\n" +
		"object-name: \"AHU 1\"\n" +
		"description: supply air temp\n" +
		"no colon here\n" +
		"units: \n" +
		"priority-array: {1,\n 2}\n" +
		"present-value: 21.5\n"

	want := []Entity{
		{Key: "object-type", Value: "analog-input"},
		{Key: "object-identifier", Value: 7.0},
		{Key: "status flags", Value: []any{false, true, false, false}},
		{Key: "object-name", Value: "AHU 1"},
		{Key: "description", Value: "supply air temp"},
		{Key: "priority-array", Value: []any{1.0, 2.0}},
		{Key: "present-value", Value: 21.5},
	}
	got := Extract(text)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("entities:\n got %#v\nwant %#v", got, want)
	}
}

func TestExtractNestedBracketFallsBackToText(t *testing.T) {
	got := Extract("priority-array: {1, {2}}\n")
	if len(got) != 1 || got[0].Value != "{1, {2}}" {
		t.Fatalf("entities = %#v", got)
	}
}

func TestExtractorTellSeek(t *testing.T) {
	e := NewExtractor("a: 1\nb: 2\n")
	first, ok := e.Next()
	if !ok || first[0].Key != "a" {
		t.Fatalf("first = %#v", first)
	}
	mark := e.Tell()
	second, _ := e.Next()
	e.Seek(mark)
	again, _ := e.Next()
	if !reflect.DeepEqual(second, again) {
		t.Fatalf("after seek got %#v, want %#v", again, second)
	}
	if _, ok := e.Next(); ok {
		t.Fatal("expected end of input")
	}
}

func TestExtractorValue(t *testing.T) {
	v, ok := NewExtractor("\n\n{1,2}\n").Value()
	if !ok || !reflect.DeepEqual(v, []any{1.0, 2.0}) {
		t.Fatalf("value = %#v", v)
	}
	v, ok = NewExtractor("active\n").Value()
	if !ok || v != "active" {
		t.Fatalf("value = %#v", v)
	}
}
