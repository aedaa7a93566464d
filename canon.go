package appledesc

// The grammar cannot tell "(x)" from a one-element list or "<k>" from a
// one-key mapping. These rules settle it after every closed frame; fixtures
// downstream depend on the exact outcome.

// canonList collapses single-element lists written without a comma. A lone
// scalar means the brackets were text; a lone container loses one level.
// With a comma, even "(a,)", the brackets are a list.
func canonList(items []Value, raw string, comma bool) Value {
	if len(items) == 1 && !comma {
		if items[0].kind == KindScalar {
			return Scalar(raw)
		}
		return items[0]
	}
	return Sequence(items...)
}

// canonMapping turns a mapping of flags and empty strings into the list of
// its keys, or into raw text when it has a single such entry.
func canonMapping(m *Mapping, raw string) Value {
	if m.Len() == 0 {
		return MappingValue(m)
	}
	for _, e := range m.entries {
		if !e.Value.isSentinel() {
			return MappingValue(m)
		}
	}
	if m.Len() == 1 {
		return Scalar(raw)
	}
	keys := make([]Value, 0, m.Len())
	for _, e := range m.entries {
		key := e.Key
		if e.Value.flag && e.Value.text == "false" {
			key = "!" + key
		}
		keys = append(keys, Scalar(key))
	}
	return Sequence(keys...)
}

// flagFor interprets a key that has no value.
func flagFor(key string) (string, Value) {
	if len(key) > 1 && key[0] == '!' {
		return key[1:], Flag(false)
	}
	return key, Flag(true)
}
