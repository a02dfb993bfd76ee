package fake

import (
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"go.flashlend.io/stxdapp/network"
)

// Rejection is the answer of the node when it refuses a transaction.
type Rejection struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
	TxID   string `json:"txid"`
}

// ReadOnlyFunc is the function called to answer a read-only call. It returns
// the hexadecimal result, or a failure cause when ok is false.
type ReadOnlyFunc func(contract, function string, args []string) (result string, ok bool)

// Node is a fake Stacks node serving the subset of the API used by the
// module. Fields can be changed at any time while holding the lock.
type Node struct {
	sync.Mutex

	server *httptest.Server

	// Balances maps an address to its balance in micro-STX.
	Balances map[string]string
	// Contracts lists the deployed contracts by identifier "addr.name".
	Contracts map[string]bool
	// Statuses maps a transaction ID to its status.
	Statuses map[string]string
	// Nonces maps an address to its next nonce.
	Nonces map[string]uint64
	// Transactions maps an address to the list of its transactions.
	Transactions map[string][]map[string]interface{}
	FeeRate      uint64
	ReadOnly     ReadOnlyFunc
	Reject       *Rejection
	// Fail makes the node answer every request with an internal error.
	Fail bool

	broadcasts [][]byte
	hits       map[string]int
}

// NewNode starts a fake node. It must be closed at the end of the test.
func NewNode() *Node {
	n := &Node{
		Balances:     make(map[string]string),
		Contracts:    make(map[string]bool),
		Statuses:     make(map[string]string),
		Nonces:       make(map[string]uint64),
		Transactions: make(map[string][]map[string]interface{}),
		FeeRate:      1,
		hits:         make(map[string]int),
	}

	n.server = httptest.NewServer(http.HandlerFunc(n.serve))

	return n
}

// URL returns the address of the node.
func (n *Node) URL() string {
	return n.server.URL
}

// Network returns the testnet pointing to the fake node.
func (n *Node) Network() network.Network {
	return network.Testnet.WithAPIURL(n.server.URL)
}

// Close stops the node.
func (n *Node) Close() {
	n.server.Close()
}

// Hits returns the number of requests received for the route.
func (n *Node) Hits(route string) int {
	n.Lock()
	defer n.Unlock()

	return n.hits[route]
}

// Broadcasts returns the raw transactions received by the node.
func (n *Node) Broadcasts() [][]byte {
	n.Lock()
	defer n.Unlock()

	return append([][]byte{}, n.broadcasts...)
}

// Deploy marks the contract as deployed.
func (n *Node) Deploy(contract string) {
	n.Lock()
	n.Contracts[contract] = true
	n.Unlock()
}

// SetStatus sets the status of the transaction.
func (n *Node) SetStatus(txid, status string) {
	n.Lock()
	n.Statuses[txid] = status
	n.Unlock()
}

// TxID returns the identifier the node gives to the raw transaction.
func TxID(raw []byte) string {
	h := sha512.Sum512_256(raw)
	return "0x" + hex.EncodeToString(h[:])
}

func (n *Node) serve(w http.ResponseWriter, r *http.Request) {
	n.Lock()
	defer n.Unlock()

	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	route := routeOf(segments)
	n.hits[route]++

	if n.Fail {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	switch route {
	case "balances":
		balance, found := n.Balances[segments[3]]
		if !found {
			writeJSON(w, http.StatusOK, map[string]interface{}{})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"stx": map[string]string{"balance": balance},
		})
	case "nonces":
		writeJSON(w, http.StatusOK, map[string]uint64{"possible_next_nonce": n.Nonces[segments[3]]})
	case "transactions":
		results := n.Transactions[segments[3]]
		if results == nil {
			results = []map[string]interface{}{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"limit": 50, "offset": 0, "total": len(results), "results": results,
		})
	case "tx":
		status, found := n.Statuses[segments[3]]
		if !found {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "could not find transaction"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"tx_id": segments[3], "tx_status": status})
	case "fees":
		writeJSON(w, http.StatusOK, n.FeeRate)
	case "interface":
		if !n.Contracts[segments[3]+"."+segments[4]] {
			http.Error(w, "No contract interface data found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"functions": []string{}})
	case "call-read":
		n.callReadOnly(w, r, segments)
	case "broadcast":
		raw, _ := io.ReadAll(r.Body)
		n.broadcasts = append(n.broadcasts, raw)

		if n.Reject != nil {
			writeJSON(w, http.StatusBadRequest, n.Reject)
			return
		}

		txid := TxID(raw)
		n.Statuses[txid] = "pending"
		writeJSON(w, http.StatusOK, txid)
	default:
		http.NotFound(w, r)
	}
}

func (n *Node) callReadOnly(w http.ResponseWriter, r *http.Request, segments []string) {
	var req struct {
		Sender    string   `json:"sender"`
		Arguments []string `json:"arguments"`
	}

	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	contract := segments[3] + "." + segments[4]

	if n.ReadOnly == nil || !n.Contracts[contract] {
		writeJSON(w, http.StatusOK, map[string]interface{}{"okay": false, "cause": "NoSuchContract"})
		return
	}

	result, ok := n.ReadOnly(contract, segments[5], req.Arguments)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"okay": false, "cause": result})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"okay": true, "result": result})
}

// routeOf maps the path of a request to the name of the route.
func routeOf(segments []string) string {
	path := strings.Join(segments, "/")

	switch {
	case strings.HasPrefix(path, "extended/v1/address/") && len(segments) == 5:
		return segments[4]
	case strings.HasPrefix(path, "extended/v1/tx/") && len(segments) == 4:
		return "tx"
	case path == "v2/fees/transfer":
		return "fees"
	case strings.HasPrefix(path, "v2/contracts/interface/") && len(segments) == 5:
		return "interface"
	case strings.HasPrefix(path, "v2/contracts/call-read/") && len(segments) == 6:
		return "call-read"
	case path == "v2/transactions":
		return "broadcast"
	}

	return "unknown"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
