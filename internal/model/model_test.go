package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterNamespaceResolvesAllVariants(t *testing.T) {
	meta := &WikiMetadata{}
	ns := &Namespace{ID: 14, Canonical: "Category", Localized: "Kategorija"}
	meta.RegisterNamespace(ns)

	for _, name := range []string{"Category", "category", "Kategorija", "kategorija"} {
		got := meta.Namespaces[name]
		if assert.NotNil(t, got, name) {
			assert.Equal(t, 14, got.ID)
		}
	}
}

func TestNamespaceByID(t *testing.T) {
	meta := &WikiMetadata{}
	meta.RegisterNamespace(&Namespace{ID: 0, Canonical: ""})
	meta.RegisterNamespace(&Namespace{ID: 14, Canonical: "Category"})

	assert.Equal(t, 14, meta.NamespaceByID(14).ID)
	assert.Nil(t, meta.NamespaceByID(99))
}

func TestFileTaskUpgrade(t *testing.T) {
	small := FileTask{Width: 100, ScaleMultiplier: 1}
	bigger := FileTask{Width: 200, ScaleMultiplier: 1}
	sameWidthHigherScale := FileTask{Width: 100, ScaleMultiplier: 2}
	smaller := FileTask{Width: 50, ScaleMultiplier: 1}

	assert.True(t, small.Upgrade(bigger))
	assert.True(t, small.Upgrade(sameWidthHigherScale))
	assert.False(t, small.Upgrade(smaller))
	assert.False(t, small.Upgrade(small))
}

func TestMergeTakesComponentwiseMax(t *testing.T) {
	existing := FileTask{ArchivePath: "I/x.png", Width: 100, ScaleMultiplier: 1}
	incoming := FileTask{ArchivePath: "I/x.png", Width: 50, ScaleMultiplier: 2}

	merged := Merge(existing, incoming)
	assert.Equal(t, 100, merged.Width)
	assert.Equal(t, 2.0, merged.ScaleMultiplier)
	assert.Equal(t, "I/x.png", merged.ArchivePath)
}

func TestParseFormatFlags(t *testing.T) {
	flags := ParseFormatFlags("nopic,nodet")
	assert.False(t, flags.NoZim)
	assert.True(t, flags.NoPictures)
	assert.False(t, flags.NoVideo)
	assert.True(t, flags.NoDetails)

	assert.Equal(t, FormatFlags{}, ParseFormatFlags(""))
}

func TestCapabilitiesUsable(t *testing.T) {
	assert.True(t, Capabilities{RESTAvailable: true}.Usable())
	assert.True(t, Capabilities{VEAvailable: true}.Usable())
	assert.False(t, Capabilities{}.Usable())
}

func TestScrapeStatusSnapshot(t *testing.T) {
	var status ScrapeStatus
	status.ArticleSucceeded()
	status.ArticleSucceeded()
	status.ArticleFailed()
	status.FileSucceeded()

	snap := status.Snapshot()
	assert.Equal(t, Snapshot{ArticlesSuccess: 2, ArticlesFail: 1, FilesSuccess: 1, FilesFail: 0}, snap)
}
