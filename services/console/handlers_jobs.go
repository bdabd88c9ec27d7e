package console

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"haforge/services/semaphore"
)

func projectID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "projectID"))
	if err != nil || id < 1 {
		return 0, errors.New("project id must be a positive integer")
	}
	return id, nil
}

// handleCreateEnvironment forwards an environment payload to the job service
// verbatim and relays whatever it answers.
func (a *API) handleCreateEnvironment(w http.ResponseWriter, r *http.Request) {
	project, err := projectID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var spec map[string]any
	if err := decodeJSON(r, &spec); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	result, err := a.orch.Jobs.CreateEnvironment(r.Context(), project, spec)
	if err != nil {
		a.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// handleRunTemplate registers a template for a stored document, starts a task
// from it, and polls that task to a terminal state. The response always
// carries the composite result; stage failures ride along inside it.
func (a *API) handleRunTemplate(w http.ResponseWriter, r *http.Request) {
	project, err := projectID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var spec semaphore.TemplateSpec
	if err := decodeJSON(r, &spec); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Name == "" {
		respondError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}
	if spec.ProjectID == 0 {
		spec.ProjectID = project
	}
	if spec.Playbook == "" {
		spec.Playbook = spec.Name + ".yml"
	}
	if spec.App == "" {
		spec.App = "ansible"
	}

	result, err := a.orch.SubmitAndRun(r.Context(), project, spec)
	if err != nil {
		a.respondFailure(w, r, err)
		return
	}

	a.logger.Info().
		Str("template", spec.Name).
		Str("state", result.State).
		Msg("job run finished")
	respondJSON(w, http.StatusOK, result)
}
