// Transmission RPC wire types
//
// Based on https://github.com/transmission/transmission/blob/main/docs/rpc-spec.md
package services

import (
	"encoding/json"

	"github.com/desertthunder/transportal/internal/models"
)

const (
	methodSessionGet    = "session-get"
	methodTorrentGet    = "torrent-get"
	methodTorrentStart  = "torrent-start"
	methodTorrentStop   = "torrent-stop"
	methodTorrentVerify = "torrent-verify"
	methodTorrentAdd    = "torrent-add"

	resultSuccess = "success"
)

// torrentFields are requested for list and detail views.
var torrentFields = []string{
	"id", "hashString", "name", "percentDone", "percentComplete", "totalSize", "eta", "status",
	"labels", "addedDate", "dateCreated", "rateDownload", "rateUpload", "error", "errorString",
}

type rpcRequest struct {
	Method    string `json:"method"`
	Arguments any    `json:"arguments,omitempty"`
	Tag       uint64 `json:"tag,omitempty"`
}

type rpcResponse struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
	Tag       uint64          `json:"tag"`
}

type sessionGetArgs struct {
	Fields []string `json:"fields"`
}

type sessionGetResult struct {
	Version    string `json:"version"`
	RPCVersion int    `json:"rpc-version"`
}

type torrentGetArgs struct {
	Format string   `json:"format"`
	Fields []string `json:"fields"`
	IDs    []string `json:"ids,omitempty"`
}

type torrentGetResult struct {
	Torrents []models.Torrent `json:"torrents"`
}

type torrentIDsArgs struct {
	IDs []string `json:"ids"`
}

type torrentAddArgs struct {
	Filename string `json:"filename"`
	Paused   bool   `json:"paused"`
}

type torrentAddResult struct {
	Added     *models.TorrentAdded `json:"torrent-added"`
	Duplicate *models.TorrentAdded `json:"torrent-duplicate"`
}
