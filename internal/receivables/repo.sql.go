package receivables

const clientColumns = `id, business_name, credit_limit, current_debt, status, inactive, created_at, updated_at`

const accountColumns = `id, client_id, reference, original_amount, current_balance, due_date, phase, paid_at, created_at, updated_at`

const insertClientSQL = `
INSERT INTO receivable_clients (business_name, credit_limit, current_debt, status, inactive, created_at, updated_at)
VALUES ($1, $2, 0, $3, FALSE, $4, $4)
RETURNING ` + clientColumns

const selectClientForUpdateSQL = `SELECT ` + clientColumns + ` FROM receivable_clients WHERE id = $1 FOR UPDATE`

const selectClientSQL = `SELECT ` + clientColumns + ` FROM receivable_clients WHERE id = $1`

const listClientsSQL = `SELECT ` + clientColumns + ` FROM receivable_clients ORDER BY id`

const updateClientSQL = `
UPDATE receivable_clients
SET business_name = $2, credit_limit = $3, inactive = $4, current_debt = $5, status = $6, updated_at = $7
WHERE id = $1`

const updateClientDebtSQL = `
UPDATE receivable_clients SET current_debt = $2, status = $3, updated_at = $4 WHERE id = $1`

const insertAccountSQL = `
INSERT INTO receivable_accounts (client_id, reference, original_amount, current_balance, due_date, phase, created_at, updated_at)
VALUES ($1, $2, $3, $3, $4, $5, $6, $6)
RETURNING ` + accountColumns

const selectAccountSQL = `SELECT ` + accountColumns + ` FROM receivable_accounts WHERE id = $1`

const selectAccountClientSQL = `SELECT client_id FROM receivable_accounts WHERE id = $1`

const selectAccountForUpdateSQL = `SELECT ` + accountColumns + ` FROM receivable_accounts WHERE id = $1 FOR UPDATE`

const listClientAccountsSQL = `SELECT ` + accountColumns + ` FROM receivable_accounts WHERE client_id = $1 ORDER BY id`

const listAccountsSQL = `SELECT ` + accountColumns + ` FROM receivable_accounts ORDER BY id`

const updateAccountBalanceSQL = `
UPDATE receivable_accounts SET current_balance = $2, phase = $3, paid_at = $4, updated_at = $5 WHERE id = $1`

const insertPaymentSQL = `
INSERT INTO receivable_payments (id, account_id, amount, method, paid_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

const listPaymentsSQL = `
SELECT id::text, account_id, amount, method, paid_at FROM receivable_payments WHERE account_id = $1 ORDER BY paid_at, created_at`

const insertMovementSQL = `
INSERT INTO receivable_movements (id, payment_id, account_id, client_id, amount, method, balance_after, status, client_debt, client_status, occurred_at, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
ON CONFLICT (payment_id) DO NOTHING`
