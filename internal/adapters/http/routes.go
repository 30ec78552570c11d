package http

import "github.com/labstack/echo/v4"

// RegisterRoutes mounts the project routes under g, which must already carry
// the Identity middleware.
func RegisterRoutes(g *echo.Group, ws *WorkspaceHandler, b *BoardHandler, t *TimelineHandler) {
	project := g.Group("/projects/:project")
	project.GET("", ws.GetWorkspace)
	project.DELETE("", ws.Close)
	project.POST("/reload", ws.Reload)
	project.POST("/clean", ws.MarkClean)
	project.GET("/snapshots/:kind", ws.LatestSnapshot)

	// Board
	project.GET("/board", b.GetBoard)
	project.PUT("/board/selection", b.SelectTask)
	project.POST("/board/tasks", b.CreateTask)
	project.PATCH("/board/tasks/:task", b.UpdateTask)
	project.DELETE("/board/tasks/:task", b.DeleteTask)
	project.POST("/board/tasks/:task/move", b.MoveTask)
	project.POST("/board/tasks/:task/convert", b.ConvertTask)
	project.PUT("/board/tasks/:task/labels/:label", b.AttachLabel)
	project.DELETE("/board/tasks/:task/labels/:label", b.DetachLabel)
	project.GET("/board/tasks/:task/checklist", b.GetChecklist)
	project.POST("/board/tasks/:task/checklist", b.CreateChecklistItem)
	project.PATCH("/board/checklist/:item", b.UpdateChecklistItem)
	project.POST("/board/checklist/:item/toggle", b.ToggleChecklistItem)
	project.DELETE("/board/checklist/:item", b.DeleteChecklistItem)
	project.POST("/board/drag", b.BeginDrag)
	project.POST("/board/drag/hover", b.HoverDrag)
	project.POST("/board/drag/drop", b.DropDrag)
	project.DELETE("/board/drag", b.CancelDrag)

	// Timeline
	project.GET("/timeline", t.GetTimeline)
	project.GET("/timeline/layout", t.GetLayout)
	project.PUT("/timeline/selection", t.SelectTask)
	project.PUT("/timeline/scale", t.SetScale)
	project.PUT("/timeline/window", t.SetWindow)
	project.POST("/timeline/tasks", t.CreateTask)
	project.PATCH("/timeline/tasks/:task", t.UpdateTask)
	project.DELETE("/timeline/tasks/:task", t.DeleteTask)
	project.POST("/timeline/tasks/:task/move", t.MoveBar)
	project.POST("/timeline/rows", t.CreateRow)
	project.PATCH("/timeline/rows/:row", t.UpdateRow)
	project.DELETE("/timeline/rows/:row", t.DeleteRow)
	project.POST("/timeline/rows/reorder", t.ReorderRows)
}
