package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/DrDelphi/NoLossLottery/data"
	"github.com/DrDelphi/NoLossLottery/vrf"
)

// ProofResponse is a fulfilled request together with its verification result
type ProofResponse struct {
	*vrf.Proof
	Verified bool `json:"verified"`
}

func (s *Server) handleProof(w http.ResponseWriter, r *http.Request) error {
	id, err := data.ParseRequestID(mux.Vars(r)["id"])
	if err != nil {
		return BadRequest(errors.WithMessage(err, "id"))
	}
	proof, ok := s.proofs.Proof(id)
	if !ok {
		return &httpError{cause: errors.Errorf("no proof for request %s", id), status: http.StatusNotFound, code: "NOT_FOUND"}
	}

	return writeJSON(w, &ProofResponse{Proof: proof, Verified: s.verify(proof)})
}

// verify checks a proof once, fulfilled proofs never change
func (s *Server) verify(proof *vrf.Proof) bool {
	if ok, found := s.verified.Get(proof.ID); found {
		return ok.(bool)
	}
	_, err := vrf.Verify(proof)
	if err != nil {
		log.Warn("proof does not verify", "id", proof.ID.String(), "error", err)
	}
	s.verified.Add(proof.ID, err == nil)

	return err == nil
}

func (s *Server) mountRandomness(sub *mux.Router) {
	sub.Path("/proof/{id}").Methods(http.MethodGet).HandlerFunc(wrapHandlerFunc(s.handleProof))
}
