package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"
	"go.vocdoni.io/dvote/log"

	"github.com/sealedvote/tally/crypto/ecc"
	"github.com/sealedvote/tally/crypto/ecc/curves"
	"github.com/sealedvote/tally/crypto/elgamal"
	"github.com/sealedvote/tally/crypto/ethereum"
	"github.com/sealedvote/tally/ledger"
	"github.com/sealedvote/tally/oracle"
	"github.com/sealedvote/tally/storage"
	"github.com/sealedvote/tally/types"
)

func TestMain(m *testing.M) {
	log.Init("debug", "stdout", nil)
	os.Exit(m.Run())
}

type captureDecryptor struct {
	nextID   uint64
	requests map[uint64][][]byte
}

func (d *captureDecryptor) RequestDecryption(ciphertexts [][]byte) (uint64, error) {
	d.nextID++
	d.requests[d.nextID] = ciphertexts
	return d.nextID, nil
}

type testServer struct {
	c       *qt.C
	srv     *httptest.Server
	dec     *captureDecryptor
	oracle  *ethereum.SignKeys
	admin   *ethereum.SignKeys
	pubKey  ecc.Point
	privKey *big.Int
	now     time.Time
}

func newTestServer(t *testing.T) *testServer {
	c := qt.New(t)

	curve, err := curves.New(curves.CurveTypeBabyJubJub)
	c.Assert(err, qt.IsNil)
	pubKey, privKey, err := elgamal.GenerateKey(curve)
	c.Assert(err, qt.IsNil)

	oracleSigner := ethereum.NewSignKeys()
	c.Assert(oracleSigner.Generate(), qt.IsNil)
	admin := ethereum.NewSignKeys()
	c.Assert(admin.Generate(), qt.IsNil)

	ts := &testServer{
		c:       c,
		dec:     &captureDecryptor{requests: make(map[uint64][][]byte)},
		oracle:  oracleSigner,
		admin:   admin,
		pubKey:  pubKey,
		privKey: privKey,
		now:     time.Unix(1700000000, 0),
	}
	l, err := ledger.New(ledger.Config{
		Storage:       storage.New(metadb.NewTest(t)),
		Decryptor:     ts.dec,
		EncryptionKey: pubKey,
		OracleAddress: oracleSigner.Address(),
		CreateAuth:    ledger.AdminOnly(admin.Address()),
		Now:           func() time.Time { return ts.now },
	})
	c.Assert(err, qt.IsNil)

	ts.srv = httptest.NewServer(NewRouterOnly(l).Router())
	t.Cleanup(ts.srv.Close)
	return ts
}

// request performs an HTTP request against the test server and decodes the
// JSON response into out (when out is not nil), returning the status code.
func (ts *testServer) request(method, path string, body, out any) int {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		ts.c.Assert(err, qt.IsNil)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	ts.c.Assert(err, qt.IsNil)
	resp, err := http.DefaultClient.Do(req)
	ts.c.Assert(err, qt.IsNil)
	defer func() { ts.c.Assert(resp.Body.Close(), qt.IsNil) }()
	if out != nil && resp.StatusCode == http.StatusOK {
		ts.c.Assert(json.NewDecoder(resp.Body).Decode(out), qt.IsNil)
	}
	return resp.StatusCode
}

// createProposal signs and submits a proposal creation as the given key.
func (ts *testServer) createProposal(signer *ethereum.SignKeys, description string, durationSeconds uint64) (uint64, int) {
	nonce := uint64(42)
	signature, err := signer.SignEthereum(CreateProposalMessage(nonce, description))
	ts.c.Assert(err, qt.IsNil)
	var res CreateProposalResponse
	status := ts.request(http.MethodPost, ProposalsEndpoint, &CreateProposalRequest{
		Description:     description,
		DurationSeconds: durationSeconds,
		Nonce:           nonce,
		Signature:       signature,
	}, &res)
	return res.ProposalID, status
}

// castVote encrypts a single-bit indicator pair, signs it as the given key
// and submits it.
func (ts *testServer) castVote(signer *ethereum.SignKeys, proposalID uint64, favor bool) int {
	forBit, againstBit := big.NewInt(0), big.NewInt(1)
	if favor {
		forBit, againstBit = big.NewInt(1), big.NewInt(0)
	}
	encFor, err := elgamal.NewCiphertext(ts.pubKey).Encrypt(forBit, ts.pubKey, nil)
	ts.c.Assert(err, qt.IsNil)
	encAgainst, err := elgamal.NewCiphertext(ts.pubKey).Encrypt(againstBit, ts.pubKey, nil)
	ts.c.Assert(err, qt.IsNil)

	req := &VoteRequest{
		EncryptedFor:     encFor.Serialize(),
		EncryptedAgainst: encAgainst.Serialize(),
	}
	req.Signature, err = signer.SignEthereum(VoteMessage(proposalID, req.EncryptedFor, req.EncryptedAgainst))
	ts.c.Assert(err, qt.IsNil)
	return ts.request(http.MethodPost, fmt.Sprintf("/proposals/%d/votes", proposalID), req, nil)
}

// answer decrypts a captured request and signs the payload as the oracle.
func (ts *testServer) answer(requestID uint64) *DecryptionResultRequest {
	cts, ok := ts.dec.requests[requestID]
	ts.c.Assert(ok, qt.IsTrue)
	counts := make([]uint64, len(cts))
	for i, data := range cts {
		ct := elgamal.NewCiphertext(ts.pubKey)
		ts.c.Assert(ct.Deserialize(data), qt.IsNil)
		_, msg, err := elgamal.Decrypt(ts.pubKey, ts.privKey, ct.C1, ct.C2, 1<<16)
		ts.c.Assert(err, qt.IsNil)
		counts[i] = msg.Uint64()
	}
	payload := oracle.EncodeResultPayload(counts[0], counts[1])
	proof, err := ts.oracle.SignEthereum(oracle.ProofMessage(requestID, payload))
	ts.c.Assert(err, qt.IsNil)
	return &DecryptionResultRequest{RequestID: requestID, Payload: payload, Proof: proof}
}

func TestPing(t *testing.T) {
	ts := newTestServer(t)
	ts.c.Assert(ts.request(http.MethodGet, PingEndpoint, nil, nil), qt.Equals, http.StatusOK)
}

func TestProposalLifecycle(t *testing.T) {
	ts := newTestServer(t)
	c := ts.c

	// Creation requires the admin's signature
	stranger := ethereum.NewSignKeys()
	c.Assert(stranger.Generate(), qt.IsNil)
	_, status := ts.createProposal(stranger, "not allowed", 3600)
	c.Assert(status, qt.Equals, http.StatusUnauthorized)

	id, status := ts.createProposal(ts.admin, "quarterly budget", 3600)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(id, qt.Equals, uint64(1))

	// The proposal snapshot is served
	var p types.Proposal
	c.Assert(ts.request(http.MethodGet, "/proposals/1", nil, &p), qt.Equals, http.StatusOK)
	c.Assert(p.Description, qt.Equals, "quarterly budget")
	c.Assert(p.Creator, qt.Equals, ts.admin.Address())
	c.Assert(p.ResultsPublished, qt.IsFalse)

	// The vote encryption key is served
	var key EncryptionKeyResponse
	c.Assert(ts.request(http.MethodGet, EncryptionKeyEndpoint, nil, &key), qt.Equals, http.StatusOK)
	c.Assert(key.CurveType, qt.Equals, curves.CurveTypeBabyJubJub)
	x, y := ts.pubKey.Point()
	c.Assert(key.X.MathBigInt().Cmp(x), qt.Equals, 0)
	c.Assert(key.Y.MathBigInt().Cmp(y), qt.Equals, 0)

	// Voting
	voter1 := ethereum.NewSignKeys()
	c.Assert(voter1.Generate(), qt.IsNil)
	voter2 := ethereum.NewSignKeys()
	c.Assert(voter2.Generate(), qt.IsNil)
	voter3 := ethereum.NewSignKeys()
	c.Assert(voter3.Generate(), qt.IsNil)

	c.Assert(ts.castVote(voter1, id, true), qt.Equals, http.StatusOK)
	c.Assert(ts.castVote(voter2, id, true), qt.Equals, http.StatusOK)
	c.Assert(ts.castVote(voter3, id, false), qt.Equals, http.StatusOK)
	c.Assert(ts.castVote(voter1, id, false), qt.Equals, http.StatusConflict)

	// Tally cannot be requested while voting is open
	var tally TallyResponse
	c.Assert(ts.request(http.MethodPost, "/proposals/1/tally", nil, &tally), qt.Equals, http.StatusForbidden)

	// Past the deadline votes are rejected and the tally goes through
	ts.now = ts.now.Add(2 * time.Hour)
	c.Assert(ts.castVote(stranger, id, true), qt.Equals, http.StatusForbidden)
	c.Assert(ts.request(http.MethodPost, "/proposals/1/tally", nil, &tally), qt.Equals, http.StatusOK)
	c.Assert(tally.ProposalID, qt.Equals, id)
	c.Assert(tally.RequestID, qt.Not(qt.Equals), uint64(0))

	// Deliver the oracle result
	c.Assert(ts.request(http.MethodPost, DecryptionEndpoint, ts.answer(tally.RequestID), nil), qt.Equals, http.StatusOK)

	var res types.Results
	c.Assert(ts.request(http.MethodGet, "/proposals/1/results", nil, &res), qt.Equals, http.StatusOK)
	c.Assert(res.Published, qt.IsTrue)
	c.Assert(res.For, qt.Equals, uint64(2))
	c.Assert(res.Against, qt.Equals, uint64(1))

	// Replay of the result is rejected, results unchanged
	c.Assert(ts.request(http.MethodPost, DecryptionEndpoint, ts.answer(tally.RequestID), nil), qt.Equals, http.StatusConflict)
	c.Assert(ts.request(http.MethodGet, "/proposals/1/results", nil, &res), qt.Equals, http.StatusOK)
	c.Assert(res.For, qt.Equals, uint64(2))
	c.Assert(res.Against, qt.Equals, uint64(1))
}

func TestBadRequests(t *testing.T) {
	ts := newTestServer(t)
	c := ts.c

	// Malformed proposal IDs
	c.Assert(ts.request(http.MethodGet, "/proposals/abc", nil, nil), qt.Equals, http.StatusBadRequest)
	c.Assert(ts.request(http.MethodGet, "/proposals/abc/results", nil, nil), qt.Equals, http.StatusBadRequest)

	// Unknown proposals
	c.Assert(ts.request(http.MethodGet, "/proposals/7", nil, nil), qt.Equals, http.StatusNotFound)
	c.Assert(ts.request(http.MethodGet, "/proposals/7/results", nil, nil), qt.Equals, http.StatusNotFound)
	c.Assert(ts.request(http.MethodPost, "/proposals/7/tally", nil, nil), qt.Equals, http.StatusNotFound)

	// Malformed bodies
	resp, err := http.Post(ts.srv.URL+ProposalsEndpoint, "application/json", bytes.NewReader([]byte("{")))
	c.Assert(err, qt.IsNil)
	c.Assert(resp.Body.Close(), qt.IsNil)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusBadRequest)

	// An unknown decryption request is rejected
	payload := oracle.EncodeResultPayload(1, 0)
	proof, err := ts.oracle.SignEthereum(oracle.ProofMessage(999, payload))
	c.Assert(err, qt.IsNil)
	status := ts.request(http.MethodPost, DecryptionEndpoint, &DecryptionResultRequest{
		RequestID: 999, Payload: payload, Proof: proof,
	}, nil)
	c.Assert(status, qt.Equals, http.StatusNotFound)

	// A vote with a garbage ciphertext is rejected before reaching the
	// ledger
	id, status := ts.createProposal(ts.admin, "target", 3600)
	c.Assert(status, qt.Equals, http.StatusOK)
	voter := ethereum.NewSignKeys()
	c.Assert(voter.Generate(), qt.IsNil)
	req := &VoteRequest{EncryptedFor: []byte{1, 2, 3}, EncryptedAgainst: []byte{4, 5, 6}}
	req.Signature, err = voter.SignEthereum(VoteMessage(id, req.EncryptedFor, req.EncryptedAgainst))
	c.Assert(err, qt.IsNil)
	c.Assert(ts.request(http.MethodPost, fmt.Sprintf("/proposals/%d/votes", id), req, nil),
		qt.Equals, http.StatusBadRequest)
}
