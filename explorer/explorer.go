// Package explorer serves a small JSON API over a running consensus
// engine: validator rankings, epoch snapshots, weight witnesses and
// the trust graph.
package explorer

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/truetrustorg/truetrust-go/core"
	"github.com/truetrustorg/truetrust-go/core/pot"
)

type ValidatorExplorerServer struct {
	router *mux.Router
	log    *log.Logger

	listenAddr string
	engine     *pot.Engine

	// Large stake figures get thousands separators in the human
	// fields.
	printer *message.Printer
}

func NewValidatorExplorerServer(engine *pot.Engine, listenAddr string) *ValidatorExplorerServer {
	expl := &ValidatorExplorerServer{
		router:     mux.NewRouter(),
		log:        core.NewLogger("explorer", ""),
		listenAddr: listenAddr,
		engine:     engine,
		printer:    message.NewPrinter(language.English),
	}

	expl.router.HandleFunc("/", expl.getStatus)
	expl.router.HandleFunc("/validators/", expl.getValidators)
	expl.router.HandleFunc("/validators/{id}", expl.getValidator)
	expl.router.HandleFunc("/snapshot/", expl.getSnapshot)
	expl.router.HandleFunc("/snapshot/witness/{id}", expl.getWitness)
	expl.router.HandleFunc("/trustgraph.dot", expl.getTrustGraphDOT)
	expl.router.Handle("/metrics", promhttp.Handler())

	return expl
}

func (expl *ValidatorExplorerServer) Start() {
	expl.log.Printf("Listening on http://%s", expl.listenAddr)
	err := http.ListenAndServe(expl.listenAddr, expl.router)
	if err != nil {
		expl.log.Fatal("ListenAndServe: ", err)
	}
}

func (expl *ValidatorExplorerServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		expl.log.Printf("Failed to encode response: %s", err)
	}
}

func parseId(s string) (pot.NodeId, error) {
	b, err := core.HexStringToBytes32(s)
	if err != nil {
		return pot.NodeId{}, fmt.Errorf("invalid validator id: %w", err)
	}
	return pot.NodeId(b), nil
}

type statusResponse struct {
	Epoch        uint64 `json:"epoch"`
	Validators   int    `json:"validators"`
	SnapshotRoot string `json:"snapshotRoot,omitempty"`
}

func (expl *ValidatorExplorerServer) getStatus(w http.ResponseWriter, r *http.Request) {
	res := statusResponse{
		Epoch:      uint64(expl.engine.Epoch()),
		Validators: len(expl.engine.Validators()),
	}
	if snap := expl.engine.Snapshot(); snap != nil {
		res.SnapshotRoot = core.Bytes32ToString(snap.Root)
	}
	expl.writeJSON(w, res)
}

type validatorResponse struct {
	Id       string  `json:"id"`
	Trust    float64 `json:"trust"`
	Quality  float64 `json:"quality"`
	Stake    float64 `json:"stake"`
	StakeRaw string  `json:"stakeRaw"`
	Weight   string  `json:"weight"`
}

func (expl *ValidatorExplorerServer) getValidators(w http.ResponseWriter, r *http.Request) {
	ranking := expl.engine.WeightRanking()

	res := make([]validatorResponse, 0, len(ranking))
	for _, entry := range ranking {
		v, ok := expl.engine.Validator(entry.Id)
		if !ok {
			continue
		}
		res = append(res, validatorResponse{
			Id:       v.Id.String(),
			Trust:    pot.QToFloat(v.TrustQ),
			Quality:  pot.QToFloat(v.QualityQ),
			Stake:    pot.QToFloat(v.StakeQ),
			StakeRaw: expl.printer.Sprintf("%d", v.StakeRaw.Uint64()),
			Weight:   entry.Weight.Dec(),
		})
	}
	expl.writeJSON(w, res)
}

type validatorDetailResponse struct {
	validatorResponse
	Historical float64         `json:"historicalTrust"`
	Work       float64         `json:"workTrust"`
	Vouching   float64         `json:"vouchingTrust"`
	VouchedBy  []vouchResponse `json:"vouchedBy"`
}

type vouchResponse struct {
	Voucher  string  `json:"voucher"`
	Strength float64 `json:"strength"`
	Epoch    uint64  `json:"epoch"`
}

func (expl *ValidatorExplorerServer) getValidator(w http.ResponseWriter, r *http.Request) {
	id, err := parseId(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	view, err := expl.engine.Describe(id)
	if err != nil {
		if errors.Is(err, pot.ErrUnknownValidator) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	res := validatorDetailResponse{
		validatorResponse: validatorResponse{
			Id:       view.Id.String(),
			Trust:    pot.QToFloat(view.TrustQ),
			Quality:  pot.QToFloat(view.QualityQ),
			Stake:    pot.QToFloat(view.StakeQ),
			StakeRaw: expl.printer.Sprintf("%d", view.StakeRaw.Uint64()),
			Weight:   view.Weight.Dec(),
		},
		Historical: pot.QToFloat(view.Historical),
		Work:       pot.QToFloat(view.Work),
		Vouching:   pot.QToFloat(view.Vouching),
		VouchedBy:  []vouchResponse{},
	}
	for _, vouch := range view.VouchedBy {
		res.VouchedBy = append(res.VouchedBy, vouchResponse{
			Voucher:  vouch.Voucher.String(),
			Strength: pot.QToFloat(vouch.StrengthQ),
			Epoch:    uint64(vouch.CreatedAt),
		})
	}
	expl.writeJSON(w, res)
}

type snapshotResponse struct {
	Epoch   uint64                   `json:"epoch"`
	Root    string                   `json:"root"`
	Records []snapshotRecordResponse `json:"records"`
}

type snapshotRecordResponse struct {
	Id     string  `json:"id"`
	Trust  float64 `json:"trust"`
	Weight string  `json:"weight"`
}

func (expl *ValidatorExplorerServer) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := expl.engine.Snapshot()
	if snap == nil {
		http.Error(w, "no epoch sealed yet", http.StatusNotFound)
		return
	}

	res := snapshotResponse{
		Epoch:   uint64(snap.Epoch),
		Root:    core.Bytes32ToString(snap.Root),
		Records: make([]snapshotRecordResponse, 0, len(snap.Records)),
	}
	for _, rec := range snap.Records {
		res.Records = append(res.Records, snapshotRecordResponse{
			Id:     rec.Id.String(),
			Trust:  pot.QToFloat(rec.TrustQ),
			Weight: rec.Weight.Dec(),
		})
	}
	expl.writeJSON(w, res)
}

type witnessResponse struct {
	Epoch   uint64 `json:"epoch"`
	Root    string `json:"root"`
	Witness string `json:"witness"`
}

func (expl *ValidatorExplorerServer) getWitness(w http.ResponseWriter, r *http.Request) {
	id, err := parseId(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snap := expl.engine.Snapshot()
	if snap == nil {
		http.Error(w, "no epoch sealed yet", http.StatusNotFound)
		return
	}

	witness, err := snap.BuildWitness(id)
	if err != nil {
		if errors.Is(err, pot.ErrUnknownValidator) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	encoded, err := witness.Encode()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	expl.writeJSON(w, witnessResponse{
		Epoch:   uint64(snap.Epoch),
		Root:    core.Bytes32ToString(snap.Root),
		Witness: hex.EncodeToString(encoded),
	})
}

func (expl *ValidatorExplorerServer) getTrustGraphDOT(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	fmt.Fprint(w, expl.engine.ExportDOT())
}
