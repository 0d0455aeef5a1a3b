package mapping

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ensNameByHash resolves a hash to its registered ENS name, returning null
// when no name is registered.
func (i *Instance) ensNameByHash(ctx context.Context, hashPtr uint32) (uint32, error) {
	hash, err := i.readString("ens.nameByHash", hashPtr)
	if err != nil {
		return 0, err
	}

	resolver := i.mctx.HostExports.ENS
	if resolver == nil {
		return 0, nil
	}
	name, found, err := resolver.NameByHash(ctx, hash)
	if err != nil {
		return 0, &TrapError{Function: "ens.nameByHash", Reason: "lookup failed", Cause: &CollaboratorError{Collaborator: "ens", Cause: err}}
	}
	if !found {
		return 0, nil
	}
	return i.writeStringResult(ctx, "ens.nameByHash", name)
}

// Guest log levels.
const (
	logLevelError   = 1
	logLevelWarning = 2
	logLevelInfo    = 3
	logLevelDebug   = 4
)

// logLog forwards a guest log line to the request logger. Unknown levels
// default to info.
func (i *Instance) logLog(ctx context.Context, level uint32, msgPtr uint32) error {
	msg, err := i.readString("log.log", msgPtr)
	if err != nil {
		return err
	}

	logger := i.mctx.Logger
	switch level {
	case logLevelError:
		logger.Error(msg, zap.String("source", "guest"))
	case logLevelWarning:
		logger.Warn(msg, zap.String("source", "guest"))
	case logLevelDebug:
		logger.Debug(msg, zap.String("source", "guest"))
	default:
		logger.Info(msg, zap.String("source", "guest"))
	}
	return nil
}

// arweaveTransactionData fetches an Arweave transaction's data, coalescing
// fetch failures to null.
func (i *Instance) arweaveTransactionData(ctx context.Context, idPtr uint32) (uint32, error) {
	id, err := i.readString("arweave.transactionData", idPtr)
	if err != nil {
		return 0, err
	}

	resolver := i.mctx.HostExports.Arweave
	if resolver == nil {
		return 0, nil
	}
	data, err := resolver.TransactionData(ctx, id)
	if err != nil {
		i.mctx.Logger.Warn("arweave.transactionData failed", zap.String("id", id), zap.Error(err))
		return 0, nil
	}
	return i.writeBytesResult(ctx, "arweave.transactionData", data)
}

// boxProfile fetches a 3Box profile as JSON, coalescing fetch failures to
// null.
func (i *Instance) boxProfile(ctx context.Context, addressPtr uint32) (uint32, error) {
	address, err := i.readString("box.profile", addressPtr)
	if err != nil {
		return 0, err
	}

	resolver := i.mctx.HostExports.ThreeBox
	if resolver == nil {
		return 0, nil
	}
	raw, err := resolver.Profile(ctx, address)
	if err != nil {
		i.mctx.Logger.Warn("box.profile failed", zap.String("address", address), zap.Error(err))
		return 0, nil
	}

	v, err := parseJSONBytes(raw)
	if err != nil {
		i.mctx.Logger.Warn("box.profile returned malformed JSON", zap.String("address", address), zap.Error(err))
		return 0, nil
	}
	out, err := encodeJSONValue(ctx, i.heap, v)
	if err != nil {
		return 0, &TrapError{Function: "box.profile", Reason: "result encoding failed", Cause: err}
	}
	return out, nil
}

// abort is the guest's assertion failure hook. It always traps, carrying
// the decoded message and location; zero line or column numbers are
// reported as unknown.
func (i *Instance) abort(ctx context.Context, msgPtr, filePtr, line, column uint32) error {
	message := "no message"
	if msgPtr != 0 {
		if m, err := i.readString("abort", msgPtr); err == nil {
			message = m
		}
	}
	file := "unknown file"
	if filePtr != 0 {
		if f, err := i.readString("abort", filePtr); err == nil {
			file = f
		}
	}
	lineStr := "unknown"
	if line != 0 {
		lineStr = fmt.Sprintf("%d", line)
	}
	columnStr := "unknown"
	if column != 0 {
		columnStr = fmt.Sprintf("%d", column)
	}

	return &TrapError{
		Function: "abort",
		Reason:   fmt.Sprintf("mapping aborted: %s, in %s, line %s, column %s", message, file, lineStr, columnStr),
	}
}
