package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundle_Validate(t *testing.T) {
	tests := []struct {
		name    string
		bundle  *Bundle
		wantErr error
		errMsg  string
	}{
		{
			name:   "Three distinct items, positive price, two buyers should pass",
			bundle: NewBundle("0xdave", []ItemID{1, 2, 3}, decimal.NewFromInt(300), 2),
		},
		{
			name:    "Empty bundle should fail",
			bundle:  NewBundle("0xdave", nil, decimal.NewFromInt(1), 1),
			wantErr: ErrInvalidBundle,
			errMsg:  "at least one item",
		},
		{
			name:    "Zero required buyers should fail",
			bundle:  NewBundle("0xdave", []ItemID{1}, decimal.NewFromInt(1), 0),
			wantErr: ErrInvalidBundle,
			errMsg:  "required buyer count",
		},
		{
			name:    "Duplicate item should fail",
			bundle:  NewBundle("0xdave", []ItemID{1, 2, 1}, decimal.NewFromInt(3), 1),
			wantErr: ErrInvalidBundle,
			errMsg:  "duplicate item 1",
		},
		{
			name:    "Fractional price should fail",
			bundle:  NewBundle("0xdave", []ItemID{1}, decimal.RequireFromString("1.5"), 1),
			wantErr: ErrInvalidBundle,
			errMsg:  "whole amount",
		},
		{
			name:    "Zero price should fail",
			bundle:  NewBundle("0xdave", []ItemID{1}, decimal.Zero, 1),
			wantErr: ErrInvalidBundle,
			errMsg:  "price must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bundle.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBundle_CheckActive(t *testing.T) {
	b := NewBundle("0xdave", []ItemID{1}, decimal.NewFromInt(1), 1)
	b.ID = 9
	assert.NoError(t, b.CheckActive())

	b.Status = BundleStatusCompleted
	assert.ErrorIs(t, b.CheckActive(), ErrAlreadyCompleted)

	b.Status = BundleStatusCancelled
	err := b.CheckActive()
	assert.ErrorIs(t, err, ErrNotActive)
	assert.False(t, errors.Is(err, ErrAlreadyCompleted))
}

func TestBundle_PaymentBookkeeping(t *testing.T) {
	b := NewBundle("0xdave", []ItemID{1, 2}, decimal.NewFromInt(2), 2)
	b.Buyers = []Address{"0xbob", "0xalice"}
	b.Interests["0xbob"] = []ItemID{2}
	b.Interests["0xalice"] = []ItemID{1}
	b.Paid["0xalice"] = true

	assert.True(t, b.IsInterested("0xbob"))
	assert.False(t, b.IsInterested("0xcarol"))
	assert.True(t, b.HasQuorum())
	assert.Equal(t, 1, b.PaidCount())
	assert.Equal(t, []Address{"0xalice"}, b.PaidBuyers())

	_, ok := b.AssignedValue("0xbob")
	assert.False(t, ok, "no assignment yet")

	b.Assignment = map[Address]decimal.Decimal{"0xbob": decimal.NewFromInt(1)}
	v, ok := b.AssignedValue("0xbob")
	require.True(t, ok)
	assert.True(t, v.Equal(decimal.NewFromInt(1)))
}

func TestBundle_CloneIsDeep(t *testing.T) {
	b := NewBundle("0xdave", []ItemID{1, 2}, decimal.NewFromInt(2), 1)
	b.Buyers = []Address{"0xbob"}
	b.Interests["0xbob"] = []ItemID{1}
	b.Assignment = map[Address]decimal.Decimal{"0xbob": decimal.NewFromInt(2)}

	c := b.Clone()
	c.ItemIDs[0] = 99
	c.Buyers = append(c.Buyers, "0xcarol")
	c.Interests["0xbob"][0] = 2
	c.Assignment["0xbob"] = decimal.Zero
	c.Paid["0xbob"] = true

	assert.Equal(t, ItemID(1), b.ItemIDs[0])
	assert.Len(t, b.Buyers, 1)
	assert.Equal(t, ItemID(1), b.Interests["0xbob"][0])
	assert.True(t, b.Assignment["0xbob"].Equal(decimal.NewFromInt(2)))
	assert.False(t, b.Paid["0xbob"])
}

func TestBundle_CheckAssignmentComplete(t *testing.T) {
	b := NewBundle("0xdave", []ItemID{1}, decimal.NewFromInt(10), 2)
	b.Buyers = []Address{"0xalice"}
	b.Interests["0xalice"] = []ItemID{1}
	b.Assignment = map[Address]decimal.Decimal{"0xalice": decimal.NewFromInt(10)}
	assert.ErrorIs(t, b.CheckAssignmentComplete(), ErrInsufficientInterest)

	b.Buyers = append(b.Buyers, "0xbob")
	b.Interests["0xbob"] = []ItemID{1}
	assert.ErrorIs(t, b.CheckAssignmentComplete(), ErrAssignmentIncomplete)

	b.Assignment["0xbob"] = decimal.Zero
	assert.NoError(t, b.CheckAssignmentComplete())
}
