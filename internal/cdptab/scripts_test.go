package cdptab

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScriptsQuoteValues(t *testing.T) {
	hostile := "\"); alert(1); (\""
	for _, script := range []string{
		setTitleScript(hostile),
		storeIdentityScript(hostile),
		writeFormatScript(hostile),
		promptScript(hostile),
		publishIdentityScript(hostile),
		changeScript(hostile),
	} {
		assert.Contains(t, script, `"\"); alert(1); (\""`)
	}
}

func TestObserverScriptUsesBinding(t *testing.T) {
	assert.Contains(t, observerScript, "window."+titleBinding+"(titleText())")
	assert.Contains(t, observerScript, "MutationObserver")
	assert.NotContains(t, observerScript, "`")
}

func TestTitleScriptsReadRawTitleText(t *testing.T) {
	for _, script := range []string{observerScript, readTitleScript} {
		assert.Contains(t, script, `document.querySelector("head > title")`)
		assert.Contains(t, script, ".textContent")
	}
	assert.NotContains(t, observerScript, "(document.title)")
	assert.NotEqual(t, "document.title", readTitleScript)
}

func TestHooksScriptWiresMenuAndVariables(t *testing.T) {
	assert.Contains(t, hooksScript, "window."+menuBinding)
	assert.Contains(t, hooksScript, "window."+varsBinding)
	assert.Contains(t, hooksScript, `"Set Browser Tab Title"`)
	assert.Contains(t, hooksScript, `"liebs-title-vars"`)
}

func TestHooksScriptRegistersIdentityWidget(t *testing.T) {
	assert.Contains(t, hooksScript, `registered_node_types["LiebsTitleVar"]`)
	assert.Contains(t, hooksScript, "prototype.onNodeCreated")
	assert.Contains(t, hooksScript, `name: "title_tab_id"`)
	assert.Contains(t, hooksScript, "computeSize: () => [0, 0]")
	assert.Contains(t, hooksScript, "serializeValue: async () => window.tabTitleTabId")
	assert.Contains(t, hooksScript, "app.graph._nodes", "nodes loaded before the hooks also get the widget")
	assert.Contains(t, publishIdentityScript("1_a"), `window.tabTitleTabId = "1_a"`)
}

func TestGraphScriptsTargetExtras(t *testing.T) {
	assert.True(t, strings.HasSuffix(readFormatScript(), `.liebsTabTitleFormat || "")`))
	assert.True(t, strings.HasSuffix(readVarsScript(), `.liebsTabTitleVars || {})`))
}

func TestEvalErrorCodes(t *testing.T) {
	assert.True(t, HasCode(evalError(context.DeadlineExceeded), CodeEvalTimeout))
	assert.True(t, HasCode(evalError(errors.New("ReferenceError")), CodeEvalFailure))
	assert.False(t, HasCode(errors.New("plain"), CodeEvalFailure))
}
