package match

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		pattern   string
		candidate any
		want      bool
	}{
		{"glob suffix", "*.example.com", "host.example.com", true},
		{"glob miss", "*.example.com", "host.example.org", false},
		{"exact case insensitive", "exact", "EXACT", true},
		{"exact miss", "exact", "exactly", false},
		{"question mark", "web?", "web1", true},
		{"char set", "web[12]", "web2", true},
		{"negated set", "web[!12]", "web2", false},
		{"negated set hit", "web[!12]", "web3", true},
		{"star crosses slash", "/srv/*", "/srv/a/b", true},
		{"unterminated bracket literal", "a[b", "a[b", true},
		{"list all present", "a b", []string{"a", "b", "c"}, true},
		{"list one missing", "a d", []string{"a", "b", "c"}, false},
		{"any list", "x", []any{"x", "y"}, true},
		{"dict subset", "a=1", map[string]any{"a": "1", "b": "2"}, true},
		{"dict value mismatch", "a=2", map[string]any{"a": "1"}, false},
		{"dict key missing", "c=1", map[string]any{"a": "1"}, false},
		{"dict flag key", "quiet", map[string]any{"quiet": nil}, true},
		{"string map", "a=1", map[string]string{"a": "1"}, true},
		{"bool yes", "yes", true, true},
		{"bool TRUE", "TRUE", true, true},
		{"bool no against true", "no", true, false},
		{"bool no against false", "no", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Compare(tt.pattern, tt.candidate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompare_UnsupportedType(t *testing.T) {
	t.Parallel()

	for _, candidate := range []any{42, 1.5, nil, struct{}{}} {
		_, err := Compare("x", candidate)
		var typeErr *TypeError
		require.ErrorAs(t, err, &typeErr, "candidate %#v", candidate)
		assert.Contains(t, err.Error(), "find cannot compare type")
	}
}

func TestAll_Negation(t *testing.T) {
	t.Parallel()

	data := map[string]any{"name": "web01", "netboot_enabled": true}

	ok, err := All(data, Criteria{{Field: "netboot_enabled", Pattern: "~yes"}}, false)
	require.NoError(t, err)
	assert.False(t, ok, "~yes against true must be false")

	ok, err = All(data, Criteria{{Field: "name", Pattern: "~db*"}}, false)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAll_ShortCircuitsInOrder(t *testing.T) {
	t.Parallel()

	// The second criterion would error on an int candidate; the first fails first.
	data := map[string]any{"name": "a", "depth": 3}
	ok, err := All(data, Criteria{{"name", "b"}, {"depth", "3"}}, false)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = All(data, Criteria{{"name", "a"}, {"depth", "3"}}, false)
	var typeErr *TypeError
	assert.ErrorAs(t, err, &typeErr)
}

func TestAll_UnknownField(t *testing.T) {
	t.Parallel()

	data := map[string]any{"name": "a"}

	ok, err := All(data, Where("missing", "x"), false)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = All(data, Where("missing", "x"), true)
	assert.True(t, errors.Is(err, ErrUnknownField), "got %v", err)
}

func TestField_Interfaces(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"name": "sys",
		"interfaces": map[string]any{
			"eth0": map[string]any{"mac_address": "AA:BB:CC:DD:EE:FF", "ip_address": "10.0.0.5"},
			"eth1": map[string]any{"mac_address": "11:22:33:44:55:66", "ip_address": ""},
		},
	}

	tests := []struct {
		name    string
		field   string
		pattern string
		want    bool
	}{
		{"mac in second interface", "mac_address", "11:22:33:44:55:66", true},
		{"mac case insensitive", "mac_address", "aa:bb:cc:dd:ee:ff", true},
		{"ip glob", "ip_address", "10.0.*", true},
		{"interface name", "ip_address", "eth1", true},
		{"no interface has it", "ip_address", "192.168.0.1", false},
		{"whitelisted but absent everywhere", "dns_name", "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Field(data, tt.field, tt.pattern, true)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCriteria(t *testing.T) {
	t.Parallel()

	c, err := ParseCriteria([]string{"name=web*", "distro=~centos", "kernel_options=a=1"})
	require.NoError(t, err)
	assert.Equal(t, Criteria{
		{Field: "name", Pattern: "web*"},
		{Field: "distro", Pattern: "~centos"},
		{Field: "kernel_options", Pattern: "a=1"},
	}, c)
	assert.Equal(t, "name=web* distro=~centos kernel_options=a=1", c.String())

	_, err = ParseCriteria([]string{"novalue"})
	assert.Error(t, err)
}
