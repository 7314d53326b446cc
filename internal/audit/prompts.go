package audit

import (
	"fmt"

	"auditor/internal/config"
)

const (
	navigatorSystemPrompt = "You are an expert browser navigator. Your goal is to apply the required filter and report the status."
	auditorSystemPrompt   = "You are an expert data auditor. Your only goal is to perform the validation audit and return the conditional status."

	scrollToViewInstruction = "Scroll the submissions table horizontally to the far right. Use mouse movement or arrow keys if a scrollbar is not visible."
	openRecordInstruction   = "Click the first 'VIEW' link or button in the list to open the task detail page."
	approveInstruction      = "Click the 'Approve (A)' button, which is usually green or marked with an 'A'."
	submitLoginInstruction  = "Click the Login button and wait for the dashboard to load."
)

func usernameInstruction(username string) string {
	return fmt.Sprintf("Enter the username %q into the email field.", username)
}

// passwordInstruction never carries the password itself; the engine
// substitutes PasswordPlaceholder when it types.
func passwordInstruction() string {
	return fmt.Sprintf("Enter the password %s into the password field.", PasswordPlaceholder)
}

// FilterTask builds the brand filter task.
func FilterTask(brand string) Task {
	return Task{
		Name:         "filter",
		SystemPrompt: navigatorSystemPrompt,
		Instruction: fmt.Sprintf(`
1. In the search bar labeled 'Brand', enter the text '%s'.
2. Click the 'Filter' button and wait for the results table to refresh.
3. If the page shows 'No rows found', your final output must be the phrase: "%s".
4. Otherwise, confirm the filter is applied by outputting "%s".
`, brand, EmptyQueuePhrase, RowsVisiblePhrase),
	}
}

// AuditTask builds the evidence validation task for the record on screen.
func AuditTask(cfg config.AuditConfig) Task {
	return Task{
		Name:         "audit",
		SystemPrompt: auditorSystemPrompt,
		Instruction: fmt.Sprintf(`
You are currently on the task detail page. Perform a data audit using this configuration:
- Evidence Key to Click: '%[1]s'
- Data Row to Extract From: '%[2]s'
- Data Column to Extract From: '%[3]s'

1. Evidence Selection: locate the image/evidence thumbnails. Click the thumbnail labeled with or corresponding to the Evidence Key '%[1]s'. Wait for the main evidence image to load in the viewer.

2. Evidence Inspection: make sure the order/reference number field ("Numero pedido" or equivalent) is fully visible and legible in the evidence viewer. Zoom out ('-') or scroll/pan the image if needed.

3. Value Extraction: in the data table section (Live Tracking), find the cell at the intersection of the row labeled '%[2]s' and the column labeled '%[3]s'. Extract its value as RAW_VALUE.

4. Data Cleaning: the target code is always a %[4]d-character alphanumeric string.
   A. Remove any double-hyphen suffix and everything after it ('83V1EAXU76--1' becomes '83V1EAXU76').
   B. Then remove any single-hyphen prefix and everything before it ('L-83V1EAXU76' becomes '83V1EAXU76').
   The result is CLEANED_VALUE.

5. Validation: search the text of the evidence image for CLEANED_VALUE, specifically the "Numero pedido" or similar order/reference/receipt number field.

6. Final Output:
   - If CLEANED_VALUE is found in the evidence, return exactly "[CLEANED_VALUE] %[5]s".
   - If CLEANED_VALUE is NOT found in the evidence, return exactly "[CLEANED_VALUE] %[6]s in the evidence".

The final output must strictly follow one of these two formats.
`, cfg.EvidenceKey, cfg.RowKey, cfg.ColumnHeader, CodeLength, FoundMarker, NotFoundMarker),
	}
}
