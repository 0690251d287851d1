package tasks

import (
	"net/http"

	"bridgeus/internal/handlers/api/v1/common"
)

// AddFavorite handles PUT /api/v1/tasks/{taskId}/favorite
func (c *TaskController) AddFavorite(w http.ResponseWriter, r *http.Request) {
	c.toggleFavorite(w, r, true)
}

// RemoveFavorite handles DELETE /api/v1/tasks/{taskId}/favorite
func (c *TaskController) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	c.toggleFavorite(w, r, false)
}

func (c *TaskController) toggleFavorite(w http.ResponseWriter, r *http.Request, add bool) {
	studentID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	taskID, err := common.PathParam(r, "taskId")
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	favorites := c.serviceCollection.FavoriteService
	if add {
		err = favorites.AddFavorite(r.Context(), studentID, taskID)
	} else {
		err = favorites.RemoveFavorite(r.Context(), studentID, taskID)
	}
	if err != nil {
		c.handleServiceError(w, r, err, "toggle favorite")
		return
	}
	c.responseBuilder.WriteNoContent(w, r)
}

// ListFavorites handles GET /api/v1/students/me/favorites
func (c *TaskController) ListFavorites(w http.ResponseWriter, r *http.Request) {
	studentID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}

	tasks, err := c.serviceCollection.FavoriteService.ListFavoriteTasks(r.Context(), studentID)
	if err != nil {
		c.handleServiceError(w, r, err, "list favorites")
		return
	}
	c.responseBuilder.WriteList(w, r, tasks, len(tasks))
}
