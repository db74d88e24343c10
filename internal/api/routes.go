package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/RMahshie/nanosynth/internal/api/handlers"
	"github.com/RMahshie/nanosynth/internal/repository"
	"github.com/RMahshie/nanosynth/internal/storage"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(api huma.API, runRepo repository.RunRepository, archive storage.Archive, status handlers.StatusSource) {
	// Initialize handlers
	runHandler := handlers.NewRunHandler(runRepo, status)
	if archive != nil {
		runHandler.WithArchive(archive)
	}

	huma.Register(api, huma.Operation{
		OperationID: "getStatus",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Get sequencer status",
		Description: "Returns the current state of the synthesis sequencer",
		Tags:        []string{"Status"},
	}, runHandler.GetStatus)

	huma.Register(api, huma.Operation{
		OperationID: "listRuns",
		Method:      http.MethodGet,
		Path:        "/api/runs",
		Summary:     "List runs",
		Description: "Returns the runs of a session, newest first",
		Tags:        []string{"Runs"},
	}, runHandler.ListRuns)

	huma.Register(api, huma.Operation{
		OperationID: "getRun",
		Method:      http.MethodGet,
		Path:        "/api/runs/{id}",
		Summary:     "Get run",
		Description: "Returns a single recorded run",
		Tags:        []string{"Runs"},
	}, runHandler.GetRun)

	huma.Register(api, huma.Operation{
		OperationID: "getRunSpectrum",
		Method:      http.MethodGet,
		Path:        "/api/runs/{id}/spectrum",
		Summary:     "Get run absorbance spectrum",
		Description: "Returns the absorbance spectrum of a completed run. Non-finite values are null.",
		Tags:        []string{"Runs"},
	}, runHandler.GetRunSpectrum)
}
