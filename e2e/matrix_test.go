package e2e

import (
	"net/http"
	"testing"
)

func TestMatrixCreate_Success(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/matrices/",
		`{"campaignId": "campaign-1", "name": "Summer Sale"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusCreated)

	result := parseJSON(t, resp)
	if result["id"] == nil || result["id"] == "" {
		t.Error("expected 'id' in response")
	}
	if result["campaignId"] != "campaign-1" {
		t.Errorf("expected campaignId 'campaign-1', got %v", result["campaignId"])
	}
}

func TestMatrixCreate_NoAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/matrices/",
		`{"campaignId": "campaign-1", "name": "Summer Sale"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestMatrixCreate_InvalidBody(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/matrices/", `{"name": ""}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestMatrixGet_NotFound(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/matrices/does-not-exist", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)

	result := parseJSON(t, resp)
	errObj := result["error"].(map[string]interface{})
	if errObj["code"] != "NOT_FOUND" {
		t.Errorf("expected error code NOT_FOUND, got %v", errObj["code"])
	}
}

func TestMatrixRows_AddAndDuplicate(t *testing.T) {
	ta := setupApp(t)
	matrixID := createMatrix(t, ta.app)
	rowID := addRow(t, ta.app, matrixID, "instagram", "story")
	assignImage(t, ta.app, matrixID, rowID, "img-1")

	resp, err := doAuthRequest(t, ta.app, http.MethodPost,
		"/api/matrices/"+matrixID+"/rows/"+rowID+"/duplicate", "")
	if err != nil {
		t.Fatalf("duplicate failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)
	dup := parseJSON(t, resp)
	if dup["id"] == rowID {
		t.Error("duplicate should get a fresh row id")
	}
	if dup["platform"] != "instagram" {
		t.Errorf("expected platform copied, got %v", dup["platform"])
	}

	// The copied assignment must show up on the matrix.
	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/matrices/"+matrixID, "")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	m := parseJSON(t, resp)
	cells := m["cells"].(map[string]interface{})
	dupCell := cells[dup["id"].(string)+":image"].(map[string]interface{})
	if dupCell["asset"] == nil {
		t.Error("expected duplicated image assignment")
	}
}

func TestMatrixRow_AddInvalidPlatform(t *testing.T) {
	ta := setupApp(t)
	matrixID := createMatrix(t, ta.app)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/matrices/"+matrixID+"/rows",
		`{"platform": "myspace", "format": "feed"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestMatrixCell_LockRejectsOverwrite(t *testing.T) {
	ta := setupApp(t)
	matrixID := createMatrix(t, ta.app)
	rowID := addRow(t, ta.app, matrixID, "facebook", "feed")
	assignImage(t, ta.app, matrixID, rowID, "img-1")

	resp, err := doAuthRequest(t, ta.app, http.MethodPost,
		"/api/matrices/"+matrixID+"/rows/"+rowID+"/cells/image/lock", "")
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	// Writing to a locked cell must conflict.
	resp, err = doAuthRequest(t, ta.app, http.MethodPut,
		"/api/matrices/"+matrixID+"/rows/"+rowID+"/cells/image",
		`{"asset": {"id": "img-2", "type": "image", "url": "https://cdn.example.com/img-2.png"}}`)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	assertStatus(t, resp, http.StatusConflict)
	result := parseJSON(t, resp)
	errObj := result["error"].(map[string]interface{})
	if errObj["code"] != "CELL_LOCKED" {
		t.Errorf("expected error code CELL_LOCKED, got %v", errObj["code"])
	}

	// Unlock and the write goes through.
	resp, err = doAuthRequest(t, ta.app, http.MethodPost,
		"/api/matrices/"+matrixID+"/rows/"+rowID+"/cells/image/unlock", "")
	if err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	assignImage(t, ta.app, matrixID, rowID, "img-2")
}

func TestMatrixCell_LockEmptyCell(t *testing.T) {
	ta := setupApp(t)
	matrixID := createMatrix(t, ta.app)
	rowID := addRow(t, ta.app, matrixID, "facebook", "feed")

	resp, err := doAuthRequest(t, ta.app, http.MethodPost,
		"/api/matrices/"+matrixID+"/rows/"+rowID+"/cells/video/lock", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusConflict)
	result := parseJSON(t, resp)
	errObj := result["error"].(map[string]interface{})
	if errObj["code"] != "EMPTY_CELL" {
		t.Errorf("expected error code EMPTY_CELL, got %v", errObj["code"])
	}
}

func TestMatrixAutoFill_FillsUnlockedCells(t *testing.T) {
	ta := setupApp(t)
	matrixID := createMatrix(t, ta.app)
	rowID := addRow(t, ta.app, matrixID, "facebook", "feed")

	resp, err := doAuthRequest(t, ta.app, http.MethodPost,
		"/api/matrices/"+matrixID+"/autofill", `{"strategy": "smart"}`)
	if err != nil {
		t.Fatalf("autofill failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	m := parseJSON(t, resp)
	cells := m["cells"].(map[string]interface{})
	imageCell := cells[rowID+":image"].(map[string]interface{})
	if imageCell["asset"] == nil {
		t.Error("expected image cell filled from the catalog")
	}
	// The stub catalog has no video assets; the cell stays empty.
	videoCell := cells[rowID+":video"].(map[string]interface{})
	if videoCell["asset"] != nil {
		t.Errorf("expected video cell left empty, got %v", videoCell["asset"])
	}
}

func TestMatrixCombinations_ReportsBlockingIssue(t *testing.T) {
	ta := setupApp(t)
	matrixID := createMatrix(t, ta.app)
	addRow(t, ta.app, matrixID, "facebook", "feed") // left empty

	resp, err := doAuthRequest(t, ta.app, http.MethodGet,
		"/api/matrices/"+matrixID+"/combinations", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	combos := result["combinations"].([]interface{})
	if len(combos) != 1 {
		t.Errorf("expected 1 combination, got %d", len(combos))
	}
	issues := result["issues"].([]interface{})
	if len(issues) == 0 {
		t.Fatal("expected a missing-asset issue for the empty row")
	}
	issue := issues[0].(map[string]interface{})
	if issue["code"] != "missing_required_asset" {
		t.Errorf("expected missing_required_asset, got %v", issue["code"])
	}
}

func TestMatrixDelete_Success(t *testing.T) {
	ta := setupApp(t)
	matrixID := createMatrix(t, ta.app)

	resp, err := doAuthRequest(t, ta.app, http.MethodDelete, "/api/matrices/"+matrixID, "")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNoContent)

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/matrices/"+matrixID, "")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}
