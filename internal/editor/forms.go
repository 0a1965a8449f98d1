package editor

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"github.com/jonathan/cv-editor/internal/types"
)

const deleteConfirmation = "Are you sure you want to delete this entry? This cannot be undone."

// SubmitForm handles a section form submission. The target section comes
// from the location fragment. On success create, add and delete reload the
// section straight away; update leaves edit mode first. Either way the
// location fragment ends without edit-mode parameters.
func (c *Controller) SubmitForm(ctx context.Context, form Form) error {
	if !form.SectionForm {
		return nil
	}
	route := ParseRoute(c.cfg.History.Hash())
	if route.SectionID == "" {
		route.SectionID = c.CurrentSection()
	}
	if route.SectionID == "" {
		return fmt.Errorf("no active section for form submission")
	}

	values := url.Values{}
	for k, v := range form.Values {
		values[k] = append([]string(nil), v...)
	}
	values.Set("section_id", route.SectionID)
	if route.VariantID != "" && values.Get("variant_id") == "" {
		values.Set("variant_id", route.VariantID)
	}
	action := types.SaveAction(values.Get("action"))

	if action == types.SaveDelete && !c.cfg.Confirm.Confirm(deleteConfirmation) {
		log.Printf("[editor] delete in %s cancelled by user", route.SectionID)
		return nil
	}

	res, err := c.cfg.Fetcher.SaveSection(ctx, values)
	if err != nil {
		c.cfg.Notify.Notify(LevelError, "Failed to save. Please try again.")
		return fmt.Errorf("failed to save %s: %w", route.SectionID, err)
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "Failed to save."
		}
		c.cfg.Notify.Notify(LevelError, msg)
		return nil
	}

	msg := res.Message
	if msg == "" {
		msg = "Saved."
	}
	c.cfg.Notify.Notify(LevelSuccess, msg)

	next := route.WithoutModes()
	if action.Reloads() {
		err := c.resolve(ctx, next)
		c.setHash(next)
		return err
	}
	c.setHash(next)
	return c.resolve(ctx, next)
}
