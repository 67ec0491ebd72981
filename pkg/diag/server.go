// Package diag exposes a read-only HTTP snapshot of the bridge, grounded
// on the teacher's pkg/http gateway server shape but trimmed to the two
// endpoints SPEC_FULL.md §4.8 calls for.
package diag

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jkennedy-usgs/sdi12wsn/pkg/registry"
	"github.com/jkennedy-usgs/sdi12wsn/pkg/sdi12"
)

// StatusSource is the minimal read-only view of the core the /status
// endpoint needs.
type StatusSource interface {
	State() sdi12.State
	PendingAddress() (addr uint8, ok bool)
	AwaitingDataFollowUp() bool
}

// Server is a read-only diagnostics HTTP server. It never mutates
// protocol or registry state (SPEC_FULL.md §4.8), so it carries none of
// the single-writer-per-field concerns the core has.
type Server struct {
	core *http.ServeMux
	log  *slog.Logger
}

// New builds the server's mux, wiring GET /status and GET /nodes.
func New(status StatusSource, reg *registry.Registry, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()
	s := &Server{core: mux, log: log}

	mux.HandleFunc("/status", s.handleStatus(status))
	mux.HandleFunc("/nodes", s.handleNodes(reg))

	return s
}

// ServeHTTP makes Server itself an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.core.ServeHTTP(w, r)
}

type statusResponse struct {
	State         string `json:"state"`
	RequestAddr   uint8  `json:"request_addr,omitempty"`
	RequestActive bool   `json:"request_active"`
	DataFollowup  bool   `json:"data_followup_in_progress"`
}

func (s *Server) handleStatus(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		addr, ok := src.PendingAddress()
		resp := statusResponse{
			State:         src.State().String(),
			RequestAddr:   addr,
			RequestActive: ok,
			DataFollowup:  src.AwaitingDataFollowUp(),
		}
		s.writeJSON(w, resp)
	}
}

type nodeResponse struct {
	Identifier   string   `json:"identifier"`
	Addr         uint8    `json:"addr"`
	DIP          uint8    `json:"dip"`
	UARTErrors   uint32   `json:"uart_errors"`
	PacketErrors uint32   `json:"packet_errors"`
	CRCErrors    uint32   `json:"crc_errors"`
	ProbeAvgs    []uint16 `json:"probe_averages"`
}

func (s *Server) handleNodes(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snap := reg.Snapshot()
		out := make([]nodeResponse, 0, len(snap))
		for _, n := range snap {
			avgs := make([]uint16, registry.ProbeCount)
			for i := 0; i < registry.ProbeCount; i++ {
				if p := n.Probe(i); p != nil {
					avgs[i] = p.Average()
				}
			}
			out = append(out, nodeResponse{
				Identifier:   n.ID.String(),
				Addr:         n.Addr,
				DIP:          n.DIP,
				UARTErrors:   n.UARTErrors,
				PacketErrors: n.PacketErrors,
				CRCErrors:    n.CRCErrors,
				ProbeAvgs:    avgs,
			})
		}
		s.writeJSON(w, out)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("diag: failed writing response", "error", err)
	}
}
