package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arkeep-io/actorrpc/internal/surface"
)

type widgetsNS struct{}

func (widgetsNS) List(ctx context.Context) ([]string, error) { return nil, nil }

type schemaDemoActor struct {
	Widgets widgetsNS
}

func (*schemaDemoActor) Ping(ctx context.Context) (string, error) { return "pong", nil }

func buildDemoSurface(t *testing.T) *surface.Surface {
	t.Helper()
	s, err := surface.BuildSurface(&schemaDemoActor{}, surface.BuildOptions{})
	require.NoError(t, err)
	return s
}

func TestFromSurfaceOrdersDeterministically(t *testing.T) {
	s := buildDemoSurface(t)
	doc := FromSurface(s)

	require.Equal(t, 1, doc.Version)
	require.Len(t, doc.Methods, 1)
	require.Equal(t, "ping", doc.Methods[0].Name)
	require.Len(t, doc.Namespaces, 1)
	require.Equal(t, "widgets", doc.Namespaces[0].Name)
	require.Len(t, doc.Namespaces[0].Methods, 1)
	require.Equal(t, "widgets.list", doc.Namespaces[0].Methods[0].Path)
}

func TestDocumentValidatesAgainstMetaSchema(t *testing.T) {
	doc := FromSurface(buildDemoSurface(t))
	require.NoError(t, Validate(doc))
}

func TestDocumentWithDatabaseValidates(t *testing.T) {
	doc := FromSurface(buildDemoSurface(t)).WithDatabase(&DatabaseDoc{
		Tables: []TableDoc{{
			Name:    "widgets",
			Columns: []ColumnDoc{{Name: "id", Type: "TEXT", Nullable: false, PK: true}},
			Indexes: []IndexDoc{{Name: "idx_widgets_id", Columns: []string{"id"}, Unique: true}},
		}},
	})
	require.NoError(t, Validate(doc))
}

func TestQuoteIdentEscapesDoubleQuotes(t *testing.T) {
	require.Equal(t, `"plain"`, quoteIdent("plain"))
	require.Equal(t, `"weird""name"`, quoteIdent(`weird"name`))
}
