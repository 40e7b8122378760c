package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/tozd/mwarchive/internal/kvstore"
)

func TestPhase3RewritesMainPageIDWhenItIsARedirectSource(t *testing.T) {
	o := &Orchestrator{
		mainPageID: "Old_Main_Page",
		redirects:  kvstore.New[string](""),
	}
	o.redirects.Set("Old_Main_Page", "New_Main_Page")

	require.NoError(t, o.phase3BuildRedirectCache(context.Background()))
	assert.Equal(t, "New_Main_Page", o.mainPageID)
}

func TestPhase3LeavesMainPageIDUnchangedWhenNotARedirect(t *testing.T) {
	o := &Orchestrator{
		mainPageID: "Main_Page",
		redirects:  kvstore.New[string](""),
	}

	require.NoError(t, o.phase3BuildRedirectCache(context.Background()))
	assert.Equal(t, "Main_Page", o.mainPageID)
}
