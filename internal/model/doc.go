// Package model defines shared data types used across the Parley sync client.
//
// Conventions:
//   - Message and user IDs: int64, server-assigned; optimistic messages carry
//     negative placeholder IDs until confirmed
//   - Room IDs: string
//   - Timestamps: time.Time in UTC
package model
