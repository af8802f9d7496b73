package common

import (
	"encoding/json"
	"net/http"
)

type Response struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func JSONResponse(w http.ResponseWriter, httpCode int, jsonResponse []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	w.Write(jsonResponse)
}

func SetJSONResponse(code int, message string, data any) (int, []byte) {
	jsonResponse, _ := json.Marshal(&Response{
		Message: message,
		Data:    data,
	})
	return code, jsonResponse
}
