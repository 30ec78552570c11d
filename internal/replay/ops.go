package replay

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aeonplan/core/internal/application/board"
	"github.com/aeonplan/core/internal/application/gantt"
	"github.com/aeonplan/core/internal/domain/timeline"
)

func (r *Runner) apply(ctx context.Context, s Step) error {
	switch s.Op {
	// board
	case "add_task":
		task, err := r.ws.Board.AddTask(ctx, board.NewTask{Name: s.Name, Status: s.Status})
		if err != nil {
			return err
		}
		r.bind(s.Ref, task.ID)
		return nil
	case "rename_task":
		return r.withRef(s.Task, func(id uuid.UUID) error {
			name := s.Name
			_, err := r.ws.Board.UpdateTask(ctx, id, board.TaskChanges{Name: &name})
			return err
		})
	case "set_status":
		return r.withRef(s.Task, func(id uuid.UUID) error {
			status := s.Status
			_, err := r.ws.Board.UpdateTask(ctx, id, board.TaskChanges{Status: &status})
			return err
		})
	case "move_task":
		return r.withRef(s.Task, func(id uuid.UUID) error {
			_, err := r.ws.Board.MoveTask(ctx, id, s.Status, s.Index)
			return err
		})
	case "remove_task":
		return r.withRef(s.Task, func(id uuid.UUID) error {
			return r.ws.Board.RemoveTask(ctx, id)
		})
	case "attach_label", "detach_label":
		return r.withRef(s.Task, func(id uuid.UUID) error {
			label, err := r.ref(s.Label)
			if err != nil {
				return err
			}
			if s.Op == "attach_label" {
				return r.ws.Board.AttachLabel(ctx, id, label)
			}
			return r.ws.Board.DetachLabel(ctx, id, label)
		})
	case "select_task":
		id, err := r.optionalRef(s.Task)
		if err != nil {
			return err
		}
		return r.ws.Board.SelectTask(id)
	case "convert":
		return r.withRef(s.Task, func(id uuid.UUID) error {
			row, err := r.optionalRef(s.Row)
			if err != nil {
				return err
			}
			bar, err := r.ws.ConvertToTimeline(ctx, id, s.Start, s.End, row)
			if err != nil {
				return err
			}
			r.bind(s.Ref, bar.ID)
			return nil
		})

	// checklist
	case "add_item":
		return r.withRef(s.Task, func(id uuid.UUID) error {
			item, err := r.ws.Board.AddChecklistItem(ctx, id, board.NewChecklistItem{Title: s.Name})
			if err != nil {
				return err
			}
			r.bind(s.Ref, item.ID)
			return nil
		})
	case "toggle_item":
		id, err := r.ref(s.Item)
		if err != nil {
			return err
		}
		_, err = r.ws.Board.ToggleChecklistItem(ctx, id)
		return err
	case "remove_item":
		id, err := r.ref(s.Item)
		if err != nil {
			return err
		}
		return r.ws.Board.RemoveChecklistItem(ctx, id)

	// board drag
	case "begin_drag":
		return r.withRef(s.Task, r.ws.Board.BeginDrag)
	case "hover_task":
		over, err := r.ref(s.Over)
		if err != nil {
			return err
		}
		_, err = r.ws.Board.HoverTask(over)
		return err
	case "hover_column":
		_, err := r.ws.Board.HoverColumn(s.Status)
		return err
	case "hover_trash":
		_, err := r.ws.Board.HoverTrash()
		return err
	case "hover_nothing":
		_, err := r.ws.Board.HoverNothing()
		return err
	case "drop":
		_, err := r.ws.Board.Drop(ctx)
		return err
	case "cancel_drag":
		return r.ws.Board.CancelDrag()

	// timeline
	case "add_row":
		row, err := r.ws.Timeline.AddRow(ctx, gantt.NewRow{Name: s.Name})
		if err != nil {
			return err
		}
		r.bind(s.Ref, row.ID)
		return nil
	case "rename_row":
		return r.withRef(s.Row, func(id uuid.UUID) error {
			name := s.Name
			_, err := r.ws.Timeline.UpdateRow(ctx, id, &name, nil)
			return err
		})
	case "remove_row":
		return r.withRef(s.Row, func(id uuid.UUID) error {
			return r.ws.Timeline.RemoveRow(ctx, id)
		})
	case "reorder_rows":
		return r.ws.Timeline.ReorderRows(s.From, s.To)
	case "add_bar":
		row, err := r.optionalRef(s.Row)
		if err != nil {
			return err
		}
		bar, err := r.ws.Timeline.AddTask(ctx, gantt.NewTask{Name: s.Name, RowID: row, StartDate: s.Start, EndDate: s.End})
		if err != nil {
			return err
		}
		r.bind(s.Ref, bar.ID)
		return nil
	case "reschedule":
		return r.withRef(s.Task, func(id uuid.UUID) error {
			_, err := r.ws.Timeline.UpdateTask(ctx, id, gantt.TaskChanges{StartDate: optionalTime(s.Start), EndDate: optionalTime(s.End)})
			return err
		})
	case "move_bar":
		return r.withRef(s.Task, func(id uuid.UUID) error {
			row, err := r.optionalRef(s.Row)
			if err != nil {
				return err
			}
			_, err = r.ws.Timeline.MoveBar(ctx, id, s.DX, row)
			return err
		})
	case "remove_bar":
		return r.withRef(s.Task, func(id uuid.UUID) error {
			return r.ws.Timeline.RemoveTask(ctx, id)
		})
	case "set_scale":
		return r.ws.Timeline.SetTimeScale(s.Scale)
	case "set_window":
		return r.ws.Timeline.SetWindow(timeline.Window{Start: s.Start, End: s.End})

	// persistence
	case "fail":
		r.coord.Wait()
		msg := s.Error
		if msg == "" {
			msg = "injected failure"
		}
		r.mem.Fail(s.Target, errors.New(msg))
		return nil
	case "recover":
		r.coord.Wait()
		r.mem.Fail(s.Target, nil)
		return nil
	case "wait":
		r.coord.Wait()
		return nil
	case "reload":
		r.coord.Wait()
		return r.ws.Retry(ctx)
	}
	return fmt.Errorf("%w %q", ErrUnknownOp, s.Op)
}

// withRef resolves a ref before calling fn
func (r *Runner) withRef(ref string, fn func(uuid.UUID) error) error {
	id, err := r.ref(ref)
	if err != nil {
		return err
	}
	return fn(id)
}
