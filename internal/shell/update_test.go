package shell

import (
	"testing"

	"github.com/dgnsrekt/tabtitle/internal/titlefmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeScopedUpdate(t *testing.T) {
	u, err := DecodeVariableUpdate([]byte(`{"title_tab_id":"123_ab","variables":{"user":"Ada","steps":30,"done":true}}`))
	require.NoError(t, err)
	assert.Equal(t, ScopedVariables{
		TabIdentity: "123_ab",
		Variables:   titlefmt.Variables{"user": "Ada", "steps": "30", "done": "true"},
	}, u)
}

func TestDecodeLegacyUpdate(t *testing.T) {
	u, err := DecodeVariableUpdate([]byte(`{"variables":{"user":"Ada"}}`))
	require.NoError(t, err)
	assert.Equal(t, LegacyVariables{Variables: titlefmt.Variables{"user": "Ada"}}, u)
}

func TestDecodeEmptyIdentityStaysScoped(t *testing.T) {
	u, err := DecodeVariableUpdate([]byte(`{"title_tab_id":"","variables":{}}`))
	require.NoError(t, err)
	_, scoped := u.(ScopedVariables)
	assert.True(t, scoped)
}

func TestDecodeNullIdentityStaysScoped(t *testing.T) {
	u, err := DecodeVariableUpdate([]byte(`{"title_tab_id":null,"variables":{"a":"1"}}`))
	require.NoError(t, err)
	assert.Equal(t, ScopedVariables{TabIdentity: "", Variables: titlefmt.Variables{"a": "1"}}, u)
}

func TestDecodeMissingVariables(t *testing.T) {
	u, err := DecodeVariableUpdate([]byte(`{"title_tab_id":"1_a","variables":null}`))
	require.NoError(t, err)
	assert.Equal(t, ScopedVariables{TabIdentity: "1_a", Variables: titlefmt.Variables{}}, u)
}

func TestDecodeMalformedUpdate(t *testing.T) {
	_, err := DecodeVariableUpdate([]byte(`[1,2]`))
	require.Error(t, err)
}

func TestParseLegacyPolicy(t *testing.T) {
	p, err := ParseLegacyPolicy("")
	require.NoError(t, err)
	assert.Equal(t, LegacyApply, p)

	p, err = ParseLegacyPolicy(" IGNORE ")
	require.NoError(t, err)
	assert.Equal(t, LegacyIgnore, p)

	_, err = ParseLegacyPolicy("drop")
	require.Error(t, err)
}
