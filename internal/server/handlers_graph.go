package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	graphNodeLimit = 160
	graphEdgeLimit = 520
	nodeEdgeLimit  = 20
)

var kindColors = map[string]string{
	"investible": "#34d399",
	"bellwether": "#60a5fa",
	"signal":     "#a78bfa",
	"regime":     "#fbbf24",
	"narrative":  "#f472b6",
	"agent":      "#22c55e",
}

var channelColors = map[string]string{
	"correlates":         "#60a5fa",
	"inverse":            "#f87171",
	"drives":             "#fbbf24",
	"liquidity":          "#a78bfa",
	"narrative":          "#f472b6",
	"iv":                 "#38bdf8",
	"delta":              "#4ade80",
	"vega":               "#facc15",
	"options":            "#fb923c",
	"cross_underlying":   "#e879f9",
	"spread":             "#2dd4bf",
	"collar":             "#94a3b8",
	"vol_regime_coupled": "#c084fc",
}

func kindColor(kind string) string {
	if c, ok := kindColors[kind]; ok {
		return c
	}
	if strings.HasPrefix(kind, "option_") {
		return "#fb923c"
	}
	return "#9ca3af"
}

func edgeColor(topChannel string) string {
	for prefix, c := range channelColors {
		if strings.HasPrefix(topChannel, prefix) {
			return c
		}
	}
	return "#9ca3af"
}

// handleGraphData serves the vis-network document: top nodes by
// prominence and the heaviest edges among them.
func (s *Server) handleGraphData(w http.ResponseWriter, r *http.Request) {
	db := s.db.Conn()

	nodes, err := s.engine.TopNodes(db, graphNodeLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	visible := make(map[string]bool, len(nodes))
	outNodes := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		visible[n.NodeID] = true
		outNodes = append(outNodes, map[string]any{
			"id":    n.NodeID,
			"label": n.Label,
			"title": fmt.Sprintf("%s | deg=%d score=%.2f", n.Kind, n.Degree, n.Score),
			"value": n.Degree + 7,
			"color": kindColor(n.Kind),
		})
	}

	edges, err := s.engine.TopEdges(db, graphEdgeLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	outEdges := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		if !visible[e.NodeA] || !visible[e.NodeB] {
			continue
		}
		v := int(e.Weight * 3)
		if v < 1 {
			v = 1
		}
		if v > 8 {
			v = 8
		}
		outEdges = append(outEdges, map[string]any{
			"id":    e.EdgeID,
			"from":  e.NodeA,
			"to":    e.NodeB,
			"value": v,
			"title": fmt.Sprintf("%s (w=%.2f)", e.TopChannel, e.Weight),
			"color": edgeColor(e.TopChannel),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"nodes": outNodes, "edges": outEdges})
}

// handleNodeDetail serves one node plus its heaviest incident edges with
// neighbor labels.
func (s *Server) handleNodeDetail(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "id")
	db := s.db.Conn()

	node, err := s.engine.GetNode(db, nodeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if node == nil {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}

	incident, err := s.engine.IncidentEdges(db, nodeID, nodeEdgeLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	edges := make([]map[string]any, 0, len(incident))
	for _, e := range incident {
		other := e.NodeA
		if other == nodeID {
			other = e.NodeB
		}
		label := other
		if n, err := s.engine.GetNode(db, other); err == nil && n != nil {
			label = n.Label
		}
		edges = append(edges, map[string]any{
			"edge_id":     e.EdgeID,
			"other":       other,
			"other_label": label,
			"weight":      e.Weight,
			"top_channel": e.TopChannel,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"node": node, "edges": edges})
}

// handleEdgeDetail serves one edge with endpoint labels and channels.
func (s *Server) handleEdgeDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid edge id")
		return
	}
	db := s.db.Conn()

	edge, err := s.engine.GetEdge(db, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if edge == nil {
		writeError(w, http.StatusNotFound, "edge not found")
		return
	}

	labelOf := func(nodeID string) string {
		if n, err := s.engine.GetNode(db, nodeID); err == nil && n != nil {
			return n.Label
		}
		return nodeID
	}
	channels, err := s.engine.Channels(db, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"edge_id":     edge.EdgeID,
		"a":           edge.NodeA,
		"b":           edge.NodeB,
		"a_label":     labelOf(edge.NodeA),
		"b_label":     labelOf(edge.NodeB),
		"weight":      edge.Weight,
		"top_channel": edge.TopChannel,
		"channels":    channels,
	})
}
