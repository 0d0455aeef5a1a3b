package mapping

import (
	"context"

	"github.com/tetratelabs/wazero"
)

// registerHostModules instantiates the two host modules a guest imports
// from: the single user namespace carrying the full host function catalog,
// and env carrying only abort. Registration happens once per worker
// runtime; every import dereferences the instance cell lazily so the same
// wiring serves each per-request instance in turn.
func registerHostModules(ctx context.Context, runtime wazero.Runtime, userNS string, cell *instanceCell) error {
	_, err := runtime.NewHostModuleBuilder(userNS).
		// Store
		NewFunctionBuilder().WithFunc(func(ctx context.Context, entityPtr, idPtr uint32) uint32 {
			i := cell.must()
			defer i.section("store.get")()
			return mustPtr(i.storeGet(ctx, entityPtr, idPtr))
		}).Export("store.get").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, entityPtr, idPtr, dataPtr uint32) {
			i := cell.must()
			defer i.section("store.set")()
			mustOK(i.storeSet(ctx, entityPtr, idPtr, dataPtr))
		}).Export("store.set").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, entityPtr, idPtr uint32) {
			i := cell.must()
			defer i.section("store.remove")()
			mustOK(i.storeRemove(ctx, entityPtr, idPtr))
		}).Export("store.remove").
		// Chain call
		NewFunctionBuilder().WithFunc(func(ctx context.Context, callPtr uint32) uint32 {
			i := cell.must()
			defer i.section("ethereum.call")()
			return mustPtr(i.ethereumCall(ctx, callPtr))
		}).Export("ethereum.call").
		// Type conversion
		NewFunctionBuilder().WithFunc(func(ctx context.Context, ptr uint32) uint32 {
			i := cell.must()
			defer i.section("typeConversion.bytesToString")()
			return mustPtr(i.bytesToString(ctx, ptr))
		}).Export("typeConversion.bytesToString").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, ptr uint32) uint32 {
			i := cell.must()
			defer i.section("typeConversion.bytesToHex")()
			return mustPtr(i.bytesToHex(ctx, ptr))
		}).Export("typeConversion.bytesToHex").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, ptr uint32) uint32 {
			i := cell.must()
			defer i.section("typeConversion.bigIntToString")()
			return mustPtr(i.bigIntToString(ctx, ptr))
		}).Export("typeConversion.bigIntToString").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, ptr uint32) uint32 {
			i := cell.must()
			defer i.section("typeConversion.bigIntToHex")()
			return mustPtr(i.bigIntToHex(ctx, ptr))
		}).Export("typeConversion.bigIntToHex").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, ptr uint32) uint32 {
			i := cell.must()
			defer i.section("typeConversion.stringToH160")()
			return mustPtr(i.stringToH160(ctx, ptr))
		}).Export("typeConversion.stringToH160").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, ptr uint32) uint32 {
			i := cell.must()
			defer i.section("typeConversion.bytesToBase58")()
			return mustPtr(i.bytesToBase58(ctx, ptr))
		}).Export("typeConversion.bytesToBase58").
		// JSON
		NewFunctionBuilder().WithFunc(func(ctx context.Context, ptr uint32) uint32 {
			i := cell.must()
			defer i.section("json.fromBytes")()
			return mustPtr(i.jsonFromBytes(ctx, ptr))
		}).Export("json.fromBytes").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, ptr uint32) uint32 {
			i := cell.must()
			defer i.section("json.try_fromBytes")()
			return mustPtr(i.jsonTryFromBytes(ctx, ptr))
		}).Export("json.try_fromBytes").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, ptr uint32) int64 {
			i := cell.must()
			defer i.section("json.toI64")()
			n, err := i.jsonToI64(ctx, ptr)
			mustOK(err)
			return n
		}).Export("json.toI64").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, ptr uint32) uint64 {
			i := cell.must()
			defer i.section("json.toU64")()
			n, err := i.jsonToU64(ctx, ptr)
			mustOK(err)
			return n
		}).Export("json.toU64").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, ptr uint32) float64 {
			i := cell.must()
			defer i.section("json.toF64")()
			f, err := i.jsonToF64(ctx, ptr)
			mustOK(err)
			return f
		}).Export("json.toF64").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, ptr uint32) uint32 {
			i := cell.must()
			defer i.section("json.toBigInt")()
			return mustPtr(i.jsonToBigInt(ctx, ptr))
		}).Export("json.toBigInt").
		// IPFS
		NewFunctionBuilder().WithFunc(func(ctx context.Context, linkPtr uint32) uint32 {
			i := cell.must()
			defer i.section("ipfs.cat")()
			return mustPtr(i.ipfsCat(ctx, linkPtr))
		}).Export("ipfs.cat").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, linkPtr, callbackPtr, userDataPtr, flagsPtr uint32) {
			i := cell.must()
			defer i.section("ipfs.map")()
			mustOK(i.ipfsMap(ctx, linkPtr, callbackPtr, userDataPtr, flagsPtr))
		}).Export("ipfs.map").
		// Crypto
		NewFunctionBuilder().WithFunc(func(ctx context.Context, ptr uint32) uint32 {
			i := cell.must()
			defer i.section("crypto.keccak256")()
			return mustPtr(i.cryptoKeccak256(ctx, ptr))
		}).Export("crypto.keccak256").
		// BigInt
		NewFunctionBuilder().WithFunc(func(ctx context.Context, x, y uint32) uint32 {
			i := cell.must()
			defer i.section("bigInt.plus")()
			return mustPtr(i.bigIntPlus(ctx, x, y))
		}).Export("bigInt.plus").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, x, y uint32) uint32 {
			i := cell.must()
			defer i.section("bigInt.minus")()
			return mustPtr(i.bigIntMinus(ctx, x, y))
		}).Export("bigInt.minus").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, x, y uint32) uint32 {
			i := cell.must()
			defer i.section("bigInt.times")()
			return mustPtr(i.bigIntTimes(ctx, x, y))
		}).Export("bigInt.times").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, x, y uint32) uint32 {
			i := cell.must()
			defer i.section("bigInt.dividedBy")()
			return mustPtr(i.bigIntDividedBy(ctx, x, y))
		}).Export("bigInt.dividedBy").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, x, y uint32) uint32 {
			i := cell.must()
			defer i.section("bigInt.dividedByDecimal")()
			return mustPtr(i.bigIntDividedByDecimal(ctx, x, y))
		}).Export("bigInt.dividedByDecimal").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, x, y uint32) uint32 {
			i := cell.must()
			defer i.section("bigInt.mod")()
			return mustPtr(i.bigIntMod(ctx, x, y))
		}).Export("bigInt.mod").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, x, exp uint32) uint32 {
			i := cell.must()
			defer i.section("bigInt.pow")()
			return mustPtr(i.bigIntPow(ctx, x, exp))
		}).Export("bigInt.pow").
		// BigDecimal
		NewFunctionBuilder().WithFunc(func(ctx context.Context, x, y uint32) uint32 {
			i := cell.must()
			defer i.section("bigDecimal.plus")()
			return mustPtr(i.bigDecimalPlus(ctx, x, y))
		}).Export("bigDecimal.plus").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, x, y uint32) uint32 {
			i := cell.must()
			defer i.section("bigDecimal.minus")()
			return mustPtr(i.bigDecimalMinus(ctx, x, y))
		}).Export("bigDecimal.minus").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, x, y uint32) uint32 {
			i := cell.must()
			defer i.section("bigDecimal.times")()
			return mustPtr(i.bigDecimalTimes(ctx, x, y))
		}).Export("bigDecimal.times").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, x, y uint32) uint32 {
			i := cell.must()
			defer i.section("bigDecimal.dividedBy")()
			return mustPtr(i.bigDecimalDividedBy(ctx, x, y))
		}).Export("bigDecimal.dividedBy").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, x, y uint32) uint32 {
			i := cell.must()
			defer i.section("bigDecimal.equals")()
			return mustPtr(i.bigDecimalEquals(ctx, x, y))
		}).Export("bigDecimal.equals").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, ptr uint32) uint32 {
			i := cell.must()
			defer i.section("bigDecimal.toString")()
			return mustPtr(i.bigDecimalToString(ctx, ptr))
		}).Export("bigDecimal.toString").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, ptr uint32) uint32 {
			i := cell.must()
			defer i.section("bigDecimal.fromString")()
			return mustPtr(i.bigDecimalFromString(ctx, ptr))
		}).Export("bigDecimal.fromString").
		// Data sources
		NewFunctionBuilder().WithFunc(func(ctx context.Context, namePtr, paramsPtr uint32) {
			i := cell.must()
			defer i.section("dataSource.create")()
			mustOK(i.dataSourceCreate(ctx, namePtr, paramsPtr))
		}).Export("dataSource.create").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, namePtr, paramsPtr, contextPtr uint32) {
			i := cell.must()
			defer i.section("dataSource.createWithContext")()
			mustOK(i.dataSourceCreateWithContext(ctx, namePtr, paramsPtr, contextPtr))
		}).Export("dataSource.createWithContext").
		NewFunctionBuilder().WithFunc(func(ctx context.Context) uint32 {
			i := cell.must()
			defer i.section("dataSource.address")()
			return mustPtr(i.dataSourceAddress(ctx))
		}).Export("dataSource.address").
		NewFunctionBuilder().WithFunc(func(ctx context.Context) uint32 {
			i := cell.must()
			defer i.section("dataSource.network")()
			return mustPtr(i.dataSourceNetwork(ctx))
		}).Export("dataSource.network").
		NewFunctionBuilder().WithFunc(func(ctx context.Context) uint32 {
			i := cell.must()
			defer i.section("dataSource.context")()
			return mustPtr(i.dataSourceContext(ctx))
		}).Export("dataSource.context").
		// ENS
		NewFunctionBuilder().WithFunc(func(ctx context.Context, hashPtr uint32) uint32 {
			i := cell.must()
			defer i.section("ens.nameByHash")()
			return mustPtr(i.ensNameByHash(ctx, hashPtr))
		}).Export("ens.nameByHash").
		// Logging
		NewFunctionBuilder().WithFunc(func(ctx context.Context, level, msgPtr uint32) {
			i := cell.must()
			defer i.section("log.log")()
			mustOK(i.logLog(ctx, level, msgPtr))
		}).Export("log.log").
		// Arweave / 3Box
		NewFunctionBuilder().WithFunc(func(ctx context.Context, idPtr uint32) uint32 {
			i := cell.must()
			defer i.section("arweave.transactionData")()
			return mustPtr(i.arweaveTransactionData(ctx, idPtr))
		}).Export("arweave.transactionData").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, addressPtr uint32) uint32 {
			i := cell.must()
			defer i.section("box.profile")()
			return mustPtr(i.boxProfile(ctx, addressPtr))
		}).Export("box.profile").
		Instantiate(ctx)
	if err != nil {
		return &InstantiationError{Reason: "registering host module " + userNS + " failed", Cause: err}
	}

	_, err = runtime.NewHostModuleBuilder("env").
		NewFunctionBuilder().WithFunc(func(ctx context.Context, msgPtr, filePtr, line, column uint32) {
			i := cell.must()
			defer i.section("abort")()
			mustOK(i.abort(ctx, msgPtr, filePtr, line, column))
		}).Export("abort").
		Instantiate(ctx)
	if err != nil {
		return &InstantiationError{Reason: "registering env host module failed", Cause: err}
	}
	return nil
}

// mustPtr converts a host function error into a trap. wazero recovers the
// panic and surfaces it as the error returned by the in-flight guest call,
// unwinding the guest frames on the way out.
func mustPtr(ptr uint32, err error) uint32 {
	if err != nil {
		panic(err)
	}
	return ptr
}

func mustOK(err error) {
	if err != nil {
		panic(err)
	}
}
