package diagnostics

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/russross/blackfriday/v2"

	"github.com/nodecrew/actorkernel/identity"
)

// StatusSource supplies the live facts the status page reports; the
// kernel implements it so this package doesn't need to import kernel.
type StatusSource interface {
	LocalNodeID() identity.NodeId
	LivePeers() []identity.NodeId
}

// StatusPage renders node and connection status as Markdown, then to
// HTML via blackfriday/v2 — the same library the teacher's
// tools/spec-html.go used to render spec documentation, repurposed
// here for a live diagnostics page rather than static docs.
type StatusPage struct {
	source StatusSource
	store  *Store // may be nil: diagnostics recording is optional
}

func NewStatusPage(source StatusSource, store *Store) *StatusPage {
	return &StatusPage{source: source, store: store}
}

func (p *StatusPage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	md := p.render()
	html := blackfriday.Run([]byte(md))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte("<!doctype html><meta charset=\"utf-8\"><title>node status</title>\n"))
	w.Write(html)
}

func (p *StatusPage) render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# node %s\n\n", p.source.LocalNodeID())

	peers := p.source.LivePeers()
	fmt.Fprintf(&b, "## live peers (%d)\n\n", len(peers))
	if len(peers) == 0 {
		b.WriteString("_none_\n\n")
	} else {
		for _, id := range peers {
			fmt.Fprintf(&b, "- %s\n", id)
		}
		b.WriteString("\n")
	}

	b.WriteString("## recent connection events\n\n")
	if p.store == nil {
		b.WriteString("_diagnostics store disabled_\n")
		return b.String()
	}

	events, err := p.store.Recent(50)
	if err != nil {
		fmt.Fprintf(&b, "_error reading diagnostics store: %s_\n", err)
		return b.String()
	}
	if len(events) == 0 {
		b.WriteString("_none recorded_\n")
		return b.String()
	}

	b.WriteString("| time | node | kind | detail |\n|---|---|---|---|\n")
	for _, e := range events {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			e.At.Format(time.RFC3339), e.NodeID, e.Kind, e.Detail)
	}

	return b.String()
}
