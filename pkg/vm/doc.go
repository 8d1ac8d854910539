// Package vm defines the stack-machine command set shared by the Jack code
// generator and the Hack back end, a parser for .vm text, and the Translator
// that lowers commands to Hack assembly.
//
// Calling convention (frame pushed by call, below the callee's locals):
//
//	ARG  -> argument 0 .. argument n-1
//	        return address
//	        saved LCL
//	        saved ARG
//	        saved THIS
//	        saved THAT
//	LCL  -> local 0 .. local k-1
//	SP   -> working stack
package vm
