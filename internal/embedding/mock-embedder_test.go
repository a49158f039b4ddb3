package embedding

import (
	"context"
	"testing"

	"github.com/hyperjump/jobmatch/pkg/utils"
)

func TestMockEmbedder(t *testing.T) {
	e := NewMockEmbedder(1024)
	vecs, err := e.EmbedBatch(context.Background(), []string{
		"Python developer with SQL",
		"Python developer with SQL",
		"python developer, machine learning",
		"pastry chef",
	}, TaskRetrievalDocument)
	if err != nil {
		t.Fatal(err)
	}
	if got := utils.Cosine(vecs[0], vecs[1]); got < 0.9999 {
		t.Errorf("identical texts should have cosine 1, got %f", got)
	}
	related := utils.Cosine(vecs[0], vecs[2])
	unrelated := utils.Cosine(vecs[0], vecs[3])
	if related <= unrelated {
		t.Errorf("texts sharing words should be closer: related=%f unrelated=%f", related, unrelated)
	}
	if e.Dimensions() != 1024 || e.Name() != "mock" {
		t.Errorf("Dimensions=%d Name=%s", e.Dimensions(), e.Name())
	}
	if NewMockEmbedder(0).Dimensions() != 384 {
		t.Error("default dimensions should be 384")
	}
}
