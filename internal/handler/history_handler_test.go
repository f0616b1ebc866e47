package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/action-ledger/internal/dto"
)

func seedHistory(t *testing.T, api *apiFixture) map[string]string {
	t.Helper()
	alice := tokenFor(t, "Alice", "players.ban", "players.warn", "players.approve_bans", "wager.head")
	checker := tokenFor(t, "Checker", "players.pc_checker")

	return map[string]string{
		"ban": api.create(t, "ban", alice, fiber.Map{
			"ids": []string{aliceLicense}, "reason": "cheating", "blacklist": true,
			"hwids": []string{"2:" + strings.Repeat("ab", 32)},
		}),
		"warn":  api.create(t, "warn", alice, fiber.Map{"ids": []string{bobLicense}, "reason": "deathmatch"}),
		"wager": api.create(t, "wagerblacklist", alice, fiber.Map{"ids": []string{bobLicense}, "player_name": "WagerCheat", "reason": "scam"}),
		"pc": api.create(t, "pc-check", checker, fiber.Map{
			"ids": []string{aliceLicense}, "reason": "injector", "caught": true,
			"supervisor": "Sup", "approver": "Head", "proofs": []string{"https://proofs.example/1.png"},
		}),
	}
}

func TestHistoryHandlerSearchPages(t *testing.T) {
	api := setupAPI(t, 10)
	ids := seedHistory(t, api)
	viewer := tokenFor(t, "Viewer")

	status, env := api.do(t, http.MethodGet, "/api/v1/history/search?limit=3&sort_desc=true", viewer, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	page := decode[dto.HistorySearchResponse](t, env.Data)
	require.Len(t, page.History, 3)
	require.False(t, page.HasReachedEnd)

	last := page.History[len(page.History)-1]
	path := "/api/v1/history/search?limit=3&sort_desc=true&offset_id=" + last.ID + "&offset_value=" + jsonInt(last.Timestamp)
	status, env = api.do(t, http.MethodGet, path, viewer, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	next := decode[dto.HistorySearchResponse](t, env.Data)
	require.Len(t, next.History, 1)
	require.True(t, next.HasReachedEnd)

	seen := append(historyIDs(page), historyIDs(next)...)
	require.ElementsMatch(t, []string{ids["ban"], ids["warn"], ids["wager"], ids["pc"]}, seen)

	for _, item := range append(page.History, next.History...) {
		if item.ID == ids["ban"] {
			require.Equal(t, dto.BanExpirationPermanent, item.BanExpiration)
		}
	}
}

func TestHistoryHandlerSearchFilters(t *testing.T) {
	api := setupAPI(t, 10)
	ids := seedHistory(t, api)
	viewer := tokenFor(t, "Viewer")

	status, env := api.do(t, http.MethodGet, "/api/v1/history/search?type=warn", viewer, nil)
	require.Equal(t, http.StatusOK, status)
	warns := decode[dto.HistorySearchResponse](t, env.Data)
	require.Len(t, warns.History, 1)
	require.NotNil(t, warns.History[0].WarnAcked)
	require.False(t, *warns.History[0].WarnAcked)

	status, env = api.do(t, http.MethodGet, "/api/v1/history/search?search_type=reason&search_value=DEATHMACH", viewer, nil)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, historyIDs(decode[dto.HistorySearchResponse](t, env.Data)), ids["warn"])

	status, env = api.do(t, http.MethodGet, "/api/v1/history/search?search_type=actionId&search_value="+strings.ToLower(ids["wager"]), viewer, nil)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, historyIDs(decode[dto.HistorySearchResponse](t, env.Data)), ids["wager"])

	status, env = api.do(t, http.MethodGet, "/api/v1/history/search?search_type=identifiers&search_value=nonsense", viewer, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, env.Message, "nonsense")

	status, _ = api.do(t, http.MethodGet, "/api/v1/history/search?search_type=everything&search_value=x", viewer, nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(t, http.MethodGet, "/api/v1/history/search?sort_key=reason", viewer, nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(t, http.MethodGet, "/api/v1/history/search", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestHistoryHandlerGetAction(t *testing.T) {
	api := setupAPI(t, 10)
	ids := seedHistory(t, api)

	status, env := api.do(t, http.MethodGet, "/api/v1/history/actions/"+ids["pc"], tokenFor(t, "Viewer"), nil)
	require.Equal(t, http.StatusOK, status)
	check := decode[dto.ActionResponse](t, env.Data)
	require.NotNil(t, check.Caught)
	require.True(t, *check.Caught)
	require.Equal(t, []string{"https://proofs.example/1.png"}, check.Proofs)

	status, _ = api.do(t, http.MethodGet, "/api/v1/history/actions/P000-0000", tokenFor(t, "Viewer"), nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestHistoryHandlerWagerBlacklist(t *testing.T) {
	api := setupAPI(t, 10)
	ids := seedHistory(t, api)
	staff := tokenFor(t, "Staff", "wager.staff")

	status, env := api.do(t, http.MethodGet, "/api/v1/wager-blacklist?player_name=wagercheat", staff, nil)
	require.Equal(t, http.StatusOK, status)
	list := decode[[]dto.ActionResponse](t, env.Data)
	require.Len(t, list, 1)
	require.Equal(t, ids["wager"], list[0].ID)

	status, env = api.do(t, http.MethodGet, "/api/v1/wager-blacklist?identifiers="+aliceLicense, staff, nil)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, decode[[]dto.ActionResponse](t, env.Data))

	status, _ = api.do(t, http.MethodGet, "/api/v1/wager-blacklist?identifiers=bogus", staff, nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(t, http.MethodGet, "/api/v1/wager-blacklist", tokenFor(t, "Viewer"), nil)
	require.Equal(t, http.StatusForbidden, status)
}

func TestHistorySearchContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "history_search.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	api := setupAPI(t, 10)
	ids := seedHistory(t, api)
	alice := tokenFor(t, "Alice", "players.ban", "players.warn")
	api.create(t, "mute", tokenFor(t, "Muter", "players.mute"), fiber.Map{"ids": []string{bobLicense}, "reason": "mic spam", "expiration": hoursFromNow(1)})
	status, _ := api.do(t, http.MethodPost, "/api/v1/actions/"+ids["warn"]+"/revoke", alice, nil)
	require.Equal(t, http.StatusOK, status)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history/search?limit=50", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "Viewer"))
	resp, err := api.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}

func jsonInt(v int64) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}

func historyIDs(page dto.HistorySearchResponse) []string {
	ids := make([]string, 0, len(page.History))
	for _, item := range page.History {
		ids = append(ids, item.ID)
	}
	return ids
}
